package server

import (
	"testing"
	"time"
)

// slowCloseConn takes a while to close, like a websocket flushing to a slow client.
type slowCloseConn struct {
	*fakeConn
	delay time.Duration
}

func (c *slowCloseConn) Close() error {
	time.Sleep(c.delay)
	return c.fakeConn.Close()
}

func TestSessionManagerCloseAllClosesConcurrently(t *testing.T) {
	sm := NewSessionManager()
	conns := make([]*slowCloseConn, 5)
	for i := range conns {
		conns[i] = &slowCloseConn{fakeConn: newFakeConn(string(rune('a' + i))), delay: 200 * time.Millisecond}
		sm.Create(conns[i])
	}

	start := time.Now()
	sm.CloseAll()
	elapsed := time.Since(start)

	if elapsed >= 800*time.Millisecond {
		t.Fatalf("closing 5 slow connections took %s, expected them to close in parallel", elapsed)
	}
	for _, c := range conns {
		select {
		case <-c.closed:
		default:
			t.Fatalf("connection %s not closed", c.ID())
		}
	}
}

func TestSessionManagerTracksSessions(t *testing.T) {
	sm := NewSessionManager()
	first := sm.Create(newFakeConn("conn-1"))
	time.Sleep(time.Millisecond)
	sm.Create(newFakeConn("conn-2"))

	if sm.Count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sm.Count())
	}
	if got, ok := sm.Get("conn-1"); !ok || got != first {
		t.Fatalf("lookup returned %v %v", got, ok)
	}
	if list := sm.List(); list[0].ConnID() != "conn-1" || list[1].ConnID() != "conn-2" {
		t.Fatalf("sessions not ordered by connection time")
	}
	if !sm.Remove("conn-1") || sm.Remove("conn-1") {
		t.Fatalf("remove should report the session exactly once")
	}
}
