package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tcr-arena/internal/models"
	"tcr-arena/internal/network"
	"tcr-arena/internal/telemetry"
)

func newTestQueue(t *testing.T, cfg QueueConfig) *Queue {
	t.Helper()
	cfg.Match.Game = models.DefaultGameConfig()
	if cfg.Match.NewTicker == nil {
		cfg.Match.NewTicker = idleTicker
	}
	q := NewQueue(cfg)
	t.Cleanup(func() {
		for _, m := range q.Matches() {
			for _, p := range m.Participants() {
				q.Remove(p.ConnID)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := q.Drain(ctx); err != nil {
			t.Errorf("drain: %v", err)
		}
	})
	return q
}

func participant(connID, playerID string) (*Participant, *fakeOutbox) {
	out := &fakeOutbox{}
	return &Participant{ConnID: connID, PlayerID: playerID, Out: out}, out
}

func TestQueuePairsInArrivalOrder(t *testing.T) {
	q := newTestQueue(t, QueueConfig{})
	a, outA := participant("conn-a", "alice")
	b, outB := participant("conn-b", "bob")

	m, err := q.Enqueue(a)
	if err != nil || m != nil {
		t.Fatalf("first enqueue should wait, got match %v err %v", m, err)
	}
	queued, ok := outA.last(network.MsgQueued)
	if !ok || queued.(network.Queued).Position != 1 {
		t.Fatalf("expected queued{position:1}, got %+v", queued)
	}

	m, err = q.Enqueue(b)
	if err != nil || m == nil {
		t.Fatalf("second enqueue should start a match, got %v %v", m, err)
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be empty, has %d", q.Len())
	}
	if outB.count(network.MsgQueued) != 0 {
		t.Fatalf("a paired participant should not be told it is queued")
	}

	for side, out := range []*fakeOutbox{outA, outB} {
		start, ok := out.last(network.MsgGameStart)
		if !ok {
			t.Fatalf("side %d: no game_start", side)
		}
		gs := start.(network.GameStart)
		if gs.PlayerIndex != side || gs.GameID != m.ID() {
			t.Fatalf("side %d: unexpected game_start %+v", side, gs)
		}
	}

	for _, connID := range []string{"conn-a", "conn-b"} {
		found, ok := q.LookupMatch(connID)
		if !ok || found != m {
			t.Fatalf("%s not indexed to the match", connID)
		}
	}
	if _, ok := q.LookupMatch("conn-z"); ok {
		t.Fatalf("unknown connection resolved to a match")
	}
}

func TestQueueRejectsDuplicates(t *testing.T) {
	q := newTestQueue(t, QueueConfig{})
	a, _ := participant("conn-a", "alice")
	if _, err := q.Enqueue(a); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := q.Enqueue(a); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued for the same connection, got %v", err)
	}
	again, _ := participant("conn-a2", "alice")
	if _, err := q.Enqueue(again); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued for the same player, got %v", err)
	}

	b, _ := participant("conn-b", "bob")
	if _, err := q.Enqueue(b); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(a); !errors.Is(err, ErrAlreadyInMatch) {
		t.Fatalf("expected ErrAlreadyInMatch, got %v", err)
	}
}

func TestQueueThirdPlayerWaits(t *testing.T) {
	q := newTestQueue(t, QueueConfig{})
	for _, id := range []string{"a", "b"} {
		p, _ := participant("conn-"+id, id)
		if _, err := q.Enqueue(p); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	c, outC := participant("conn-c", "carol")
	if m, err := q.Enqueue(c); err != nil || m != nil {
		t.Fatalf("third player should wait, got %v %v", m, err)
	}
	if q.Len() != 1 || len(q.Matches()) != 1 {
		t.Fatalf("expected one waiting and one match, got %d and %d", q.Len(), len(q.Matches()))
	}
	if queued, _ := outC.last(network.MsgQueued); queued.(network.Queued).Position != 1 {
		t.Fatalf("unexpected position %+v", queued)
	}
}

func TestQueueRemoveWaitingIsSilent(t *testing.T) {
	metrics := telemetry.NewCounters()
	q := newTestQueue(t, QueueConfig{Metrics: metrics})
	a, outA := participant("conn-a", "alice")
	if _, err := q.Enqueue(a); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if !q.Remove("conn-a") {
		t.Fatalf("expected queued connection to be removed")
	}
	if q.Len() != 0 || metrics.Get(telemetry.MetricQueueLength) != 0 {
		t.Fatalf("queue not empty after removal")
	}
	if msgs := outA.messages(); len(msgs) != 1 {
		t.Fatalf("removal should send nothing beyond the queued ack, got %+v", msgs)
	}
	if q.Remove("conn-a") {
		t.Fatalf("second removal should report an unknown connection")
	}
}

func TestQueueRemoveMatchedForfeitsAndReleases(t *testing.T) {
	rec := &fakeRecorder{}
	metrics := telemetry.NewCounters()
	q := newTestQueue(t, QueueConfig{Match: MatchConfig{Recorder: rec}, Metrics: metrics})
	a, _ := participant("conn-a", "alice")
	b, outB := participant("conn-b", "bob")
	q.Enqueue(a)
	m, _ := q.Enqueue(b)
	if metrics.Get(telemetry.MetricActiveMatches) != 1 {
		t.Fatalf("expected one active match")
	}

	if !q.Remove("conn-a") {
		t.Fatalf("matched connection should be known")
	}
	end, ok := outB.last(network.MsgGameEnd)
	if !ok || end.(network.GameEnd).Winner != 1 {
		t.Fatalf("expected opponent to win by forfeit, got %+v", end)
	}
	if _, ok := q.LookupMatch("conn-b"); ok {
		t.Fatalf("ended match still indexed")
	}
	if len(q.Matches()) != 0 || metrics.Get(telemetry.MetricActiveMatches) != 0 {
		t.Fatalf("ended match not released")
	}

	// The opponent leaving later is a no-op.
	if q.Remove("conn-b") {
		t.Fatalf("connection of a released match should be unknown")
	}
	m.Wait()
	if calls := rec.winnerCalls(); len(calls) != 1 || calls[0].WinnerID != "bob" {
		t.Fatalf("unexpected winner records %+v", calls)
	}
}

func TestQueueBothLeaveAtOnce(t *testing.T) {
	rec := &fakeRecorder{}
	q := newTestQueue(t, QueueConfig{Match: MatchConfig{Recorder: rec}})
	a, outA := participant("conn-a", "alice")
	b, outB := participant("conn-b", "bob")
	q.Enqueue(a)
	m, _ := q.Enqueue(b)

	var wg sync.WaitGroup
	for _, id := range []string{"conn-a", "conn-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			q.Remove(id)
		}(id)
	}
	wg.Wait()
	m.Wait()

	if outA.count(network.MsgGameEnd) != 1 || outB.count(network.MsgGameEnd) != 1 {
		t.Fatalf("expected exactly one game_end each")
	}
	if calls := rec.winnerCalls(); len(calls) != 1 {
		t.Fatalf("expected one winner record, got %+v", calls)
	}
}

func TestQueueExpiresStaleEntries(t *testing.T) {
	now := time.Unix(1700000000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	metrics := telemetry.NewCounters()
	q := newTestQueue(t, QueueConfig{MaxWait: time.Second, Now: clock, Metrics: metrics})
	a, outA := participant("conn-a", "alice")
	q.Enqueue(a)

	if n := q.ExpireStale(); n != 0 {
		t.Fatalf("nothing should expire yet, evicted %d", n)
	}

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()
	if n := q.ExpireStale(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if q.Len() != 0 {
		t.Fatalf("stale entry still queued")
	}
	timeout, ok := outA.last(network.MsgQueueTimeout)
	if !ok || timeout.(network.QueueTimeout).WaitedSeconds != 2 {
		t.Fatalf("expected queue_timeout after 2s, got %+v", timeout)
	}
	if metrics.Get(telemetry.MetricQueueTimeouts) != 1 {
		t.Fatalf("timeout not counted")
	}
}

func TestQueueWithoutMaxWaitNeverExpires(t *testing.T) {
	q := newTestQueue(t, QueueConfig{Now: func() time.Time { return time.Now().Add(time.Hour) }})
	a, _ := participant("conn-a", "alice")
	q.Enqueue(a)
	if n := q.ExpireStale(); n != 0 || q.Len() != 1 {
		t.Fatalf("unbounded queue evicted %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.RunJanitor(ctx)
}
