package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tcr-arena/internal/network"
	"tcr-arena/internal/telemetry"
)

var (
	// ErrAlreadyQueued is returned when the connection or its player is already waiting.
	ErrAlreadyQueued = errors.New("already queued")
	// ErrAlreadyInMatch is returned when the connection is playing a match.
	ErrAlreadyInMatch = errors.New("already in a match")
)

// QueueConfig configures matchmaking.
type QueueConfig struct {
	// Match is the template every paired match is created from. OnEnd is overwritten.
	Match MatchConfig
	// MaxWait evicts connections that waited longer. Zero waits forever.
	MaxWait time.Duration
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Now     func() time.Time
}

type queueEntry struct {
	participant *Participant
	since       time.Time
}

// Queue pairs waiting connections into matches and indexes the running matches.
type Queue struct {
	cfg     QueueConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu      sync.Mutex
	waiting []queueEntry
	matches map[string]*Match // matchID -> match
	byConn  map[string]string // connID -> matchID

	matchWG sync.WaitGroup
}

// NewQueue creates an empty queue.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Match.Logger == nil {
		cfg.Match.Logger = cfg.Logger
	}
	if cfg.Match.Metrics == nil {
		cfg.Match.Metrics = cfg.Metrics
	}
	return &Queue{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		matches: make(map[string]*Match),
		byConn:  make(map[string]string),
	}
}

// Enqueue adds a participant to the back of the queue. Once two are waiting the two oldest
// are paired, the first becoming side 0, and their match is started. Enqueue returns the
// started match, or nil if the participant is still waiting.
func (q *Queue) Enqueue(p *Participant) (*Match, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, playing := q.byConn[p.ConnID]; playing {
		return nil, ErrAlreadyInMatch
	}
	for _, e := range q.waiting {
		if e.participant.ConnID == p.ConnID || (p.PlayerID != "" && e.participant.PlayerID == p.PlayerID) {
			return nil, ErrAlreadyQueued
		}
	}

	q.waiting = append(q.waiting, queueEntry{participant: p, since: q.cfg.Now()})
	q.logger.Printf("[Queue] %s (%s) waiting, %d in queue", p.PlayerID, p.ConnID, len(q.waiting))

	var m *Match
	if len(q.waiting) >= 2 {
		first, second := q.waiting[0].participant, q.waiting[1].participant
		q.waiting = append(q.waiting[:0], q.waiting[2:]...)
		m = q.startMatchLocked(first, second)
	} else if p.Out != nil {
		_ = p.Out.Send(network.MsgQueued, network.Queued{Position: len(q.waiting)})
	}
	q.metrics.Store(telemetry.MetricQueueLength, uint64(len(q.waiting)))
	return m, nil
}

// startMatchLocked creates and starts a match. Locks are always taken queue first, then
// match; the match's end hook runs after the match lock is released.
func (q *Queue) startMatchLocked(first, second *Participant) *Match {
	cfg := q.cfg.Match
	cfg.OnEnd = q.release
	m := NewMatch(first, second, cfg)

	q.matches[m.ID()] = m
	q.byConn[first.ConnID] = m.ID()
	q.byConn[second.ConnID] = m.ID()
	q.metrics.Store(telemetry.MetricActiveMatches, uint64(len(q.matches)))

	q.logger.Printf("[Queue] matched %s with %s in %s", first.PlayerID, second.PlayerID, m.ID())
	if err := m.Start(); err != nil {
		q.logger.Printf("[Queue] failed to start match %s: %v", m.ID(), err)
	}

	q.matchWG.Add(1)
	go func() {
		defer q.matchWG.Done()
		<-m.Done()
		m.Wait()
	}()
	return m
}

// release drops an ended match from the index. It runs as the match's end hook.
func (q *Queue) release(m *Match) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.matches, m.ID())
	for _, p := range m.Participants() {
		if q.byConn[p.ConnID] == m.ID() {
			delete(q.byConn, p.ConnID)
		}
	}
	q.metrics.Store(telemetry.MetricActiveMatches, uint64(len(q.matches)))
	q.logger.Printf("[Queue] released match %s", m.ID())
}

// Remove handles a departing connection. A waiting connection leaves the queue silently; a
// playing one forfeits its match. It reports whether the connection was known.
func (q *Queue) Remove(connID string) bool {
	q.mu.Lock()
	for i, e := range q.waiting {
		if e.participant.ConnID == connID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			q.metrics.Store(telemetry.MetricQueueLength, uint64(len(q.waiting)))
			q.mu.Unlock()
			q.logger.Printf("[Queue] %s left the queue", connID)
			return true
		}
	}
	m := q.matches[q.byConn[connID]]
	q.mu.Unlock()

	// The match lock is only taken after the queue lock is released.
	if m == nil {
		return false
	}
	m.HandleDisconnect(connID)
	return true
}

// LookupMatch returns the running match the connection plays in.
func (q *Queue) LookupMatch(connID string) (*Match, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.byConn[connID]
	if !ok {
		return nil, false
	}
	m, ok := q.matches[id]
	return m, ok
}

// Len returns the number of waiting connections.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Matches returns the indexed matches ordered by ID.
func (q *Queue) Matches() []*Match {
	q.mu.Lock()
	out := make([]*Match, 0, len(q.matches))
	for _, m := range q.matches {
		out = append(out, m)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ExpireStale evicts every connection that waited longer than MaxWait and tells it so.
// It returns how many were evicted.
func (q *Queue) ExpireStale() int {
	if q.cfg.MaxWait <= 0 {
		return 0
	}
	now := q.cfg.Now()

	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.waiting[:0]
	evicted := 0
	for _, e := range q.waiting {
		waited := now.Sub(e.since)
		if waited <= q.cfg.MaxWait {
			kept = append(kept, e)
			continue
		}
		evicted++
		q.logger.Printf("[Queue] %s timed out after %s", e.participant.PlayerID, waited.Round(time.Millisecond))
		if e.participant.Out != nil {
			_ = e.participant.Out.Send(network.MsgQueueTimeout, network.QueueTimeout{WaitedSeconds: waited.Seconds()})
		}
	}
	q.waiting = kept
	if evicted > 0 {
		q.metrics.Add(telemetry.MetricQueueTimeouts, uint64(evicted))
		q.metrics.Store(telemetry.MetricQueueLength, uint64(len(q.waiting)))
	}
	return evicted
}

// RunJanitor evicts stale entries until ctx is done. It returns at once when MaxWait is
// zero.
func (q *Queue) RunJanitor(ctx context.Context) {
	if q.cfg.MaxWait <= 0 {
		return
	}
	interval := q.cfg.MaxWait / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.ExpireStale()
		}
	}
}

// Drain waits until every started match has ended and finished persisting, or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.matchWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
