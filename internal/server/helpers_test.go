package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tcr-arena/internal/models"
	"tcr-arena/internal/network"
)

type sentMessage struct {
	Type    string
	Payload any
}

// fakeOutbox records everything a match or controller sends to one connection.
type fakeOutbox struct {
	mu   sync.Mutex
	msgs []sentMessage
}

func (f *fakeOutbox) Send(msgType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sentMessage{Type: msgType, Payload: payload})
	return nil
}

func (f *fakeOutbox) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.msgs...)
}

func (f *fakeOutbox) count(msgType string) int {
	n := 0
	for _, m := range f.messages() {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (f *fakeOutbox) last(msgType string) (any, bool) {
	msgs := f.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i].Payload, true
		}
	}
	return nil, false
}

// fakeConn is a Conn backed by a fakeOutbox.
type fakeConn struct {
	fakeOutbox
	id     string
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, closed: make(chan struct{})}
}

func (c *fakeConn) ID() string            { return c.id }
func (c *fakeConn) Codec() network.Codec { return network.JSONCodec }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type winnerCall struct {
	Ref      models.MatchRef
	WinnerID string
}

// fakeRecorder stands in for the persistence store.
type fakeRecorder struct {
	mu        sync.Mutex
	createErr error
	winnerErr error
	created   [][2]string
	winners   []winnerCall
}

func (r *fakeRecorder) CreateMatchRecord(_ context.Context, p1, p2 string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return "", r.createErr
	}
	r.created = append(r.created, [2]string{p1, p2})
	return "record-" + p1 + "-" + p2, nil
}

func (r *fakeRecorder) RecordWinner(_ context.Context, ref models.MatchRef, winnerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.winners = append(r.winners, winnerCall{Ref: ref, WinnerID: winnerID})
	return r.winnerErr
}

func (r *fakeRecorder) winnerCalls() []winnerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]winnerCall(nil), r.winners...)
}

func (r *fakeRecorder) createCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

var errStoreDown = errors.New("store down")

// manualTicker only fires when the test sends on it.
type manualTicker struct {
	c chan time.Time
}

func (t *manualTicker) Chan() <-chan time.Time { return t.c }
func (t *manualTicker) Stop()                  {}

func manualTickers() (func(time.Duration) Ticker, <-chan *manualTicker) {
	created := make(chan *manualTicker, 16)
	return func(time.Duration) Ticker {
		t := &manualTicker{c: make(chan time.Time)}
		created <- t
		return t
	}, created
}

func idleTicker(time.Duration) Ticker {
	return &manualTicker{c: make(chan time.Time)}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
