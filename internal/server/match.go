package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"tcr-arena/internal/game"
	"tcr-arena/internal/models"
	"tcr-arena/internal/network"
	"tcr-arena/internal/telemetry"
)

// Rejections returned by PlayCard. None of them change match state.
var (
	ErrNotParticipant     = errors.New("not a participant of this match")
	ErrMatchNotRunning    = errors.New("match is not running")
	ErrInsufficientElixir = errors.New("insufficient elixir")
	ErrInvalidCard        = errors.New("invalid card")
	ErrMatchStarted       = errors.New("match already started")
)

// Outbox delivers notifications to one connection. Send must not block.
type Outbox interface {
	Send(msgType string, payload any) error
}

// Participant is a transport connection bound to a player identity.
type Participant struct {
	ConnID   string
	PlayerID string
	Out      Outbox
}

// Recorder is the persistence collaborator for match records.
type Recorder interface {
	CreateMatchRecord(ctx context.Context, player1ID, player2ID string) (string, error)
	RecordWinner(ctx context.Context, ref models.MatchRef, winnerID string) error
}

// Ticker drives a match. It exists so tests can run matches without wall-clock ticks.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) Chan() <-chan time.Time { return t.C }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// MatchConfig wires a match to its collaborators.
type MatchConfig struct {
	Game           models.GameConfig
	Recorder       Recorder
	Logger         telemetry.Logger
	Metrics        telemetry.Metrics
	NewTicker      func(time.Duration) Ticker
	PersistTimeout time.Duration

	// OnEnd runs once after the match ended, outside the match lock.
	OnEnd func(*Match)
}

// Match owns one game between two participants and advances it at a fixed tick rate.
type Match struct {
	id      string
	cfg     MatchConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	players [2]*Participant

	mu     sync.Mutex
	status models.MatchStatus
	towers []*models.Tower
	units  []*models.Unit
	elixir [2]float64
	winner int
	tick   uint64

	stop       chan struct{}
	driverDone chan struct{}
	recordID   chan string
	persistWG  sync.WaitGroup
	endOnce    sync.Once
}

// NewMatch creates a match in the Forming state. p1 plays side 0, p2 side 1.
func NewMatch(p1, p2 *Participant, cfg MatchConfig) *Match {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	return &Match{
		id:         uuid.NewString(),
		cfg:        cfg,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		players:    [2]*Participant{p1, p2},
		status:     models.StatusForming,
		winner:     models.NoWinner,
		stop:       make(chan struct{}),
		driverDone: make(chan struct{}),
		recordID:   make(chan string, 1),
	}
}

// ID returns the match identifier.
func (m *Match) ID() string {
	return m.id
}

// Participants returns both participants, side 0 first.
func (m *Match) Participants() [2]*Participant {
	return m.players
}

// Status returns the lifecycle state.
func (m *Match) Status() models.MatchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Winner returns the winning side, or models.NoWinner while undecided.
func (m *Match) Winner() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winner
}

// Elixir returns both sides' elixir.
func (m *Match) Elixir() [2]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elixir
}

// Snapshot copies the current entity state.
func (m *Match) Snapshot() game.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return game.TakeSnapshot(m.towers, m.units, m.elixir)
}

// Start lays out the arena, seeds elixir, notifies both participants and starts ticking.
func (m *Match) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.StatusForming {
		return ErrMatchStarted
	}

	rules := m.cfg.Game.Rules
	m.towers = game.NewTowers(m.cfg.Game.Towers)
	m.units = nil
	m.elixir = [2]float64{rules.StartingElixir, rules.StartingElixir}
	m.status = models.StatusRunning
	m.metrics.Add(telemetry.MetricMatchesStarted, 1)
	m.logger.Printf("[Match %s] started: %s (side 0) vs %s (side 1), %d Hz", m.id, m.players[0].PlayerID, m.players[1].PlayerID, rules.TickRate)

	if m.cfg.Recorder != nil {
		m.persistWG.Add(1)
		go m.createRecord()
	}

	for side, p := range m.players {
		m.notify(p, network.MsgGameStart, network.GameStart{GameID: m.id, PlayerIndex: side})
	}

	ticker := m.cfg.NewTicker(time.Second / time.Duration(rules.TickRate))
	go m.run(ticker)
	return nil
}

func (m *Match) run(ticker Ticker) {
	defer close(m.driverDone)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.Chan():
			m.Tick()
		}
	}
}

// Tick advances the match by one step. It does nothing once the match left Running.
func (m *Match) Tick() {
	m.mu.Lock()
	ended := m.tickLocked()
	m.mu.Unlock()
	if ended {
		m.finish()
	}
}

func (m *Match) tickLocked() bool {
	if m.status != models.StatusRunning {
		return false
	}
	m.tick++
	m.metrics.Add(telemetry.MetricTicks, 1)
	rules := m.cfg.Game.Rules

	for _, u := range m.units {
		if game.UnitAlive(u) {
			game.Advance(u)
		}
	}

	for side := range m.elixir {
		m.elixir[side] = game.RegenerateElixir(m.elixir[side], rules.ElixirPerTick, rules.MaxElixir)
	}

	for _, name := range game.ResolveAttacks(m.units, m.towers, rules.EngagementRadius) {
		m.logger.Printf("[Match %s] tower %s destroyed at tick %d", m.id, name, m.tick)
	}

	m.units = game.PurgeDead(m.units)

	// Team 0's king is checked first, so a double knockout goes to side 1.
	if game.KingDestroyed(m.towers, 0) {
		return m.endLocked(1, "king tower destroyed")
	}
	if game.KingDestroyed(m.towers, 1) {
		return m.endLocked(0, "king tower destroyed")
	}

	snap := game.TakeSnapshot(m.towers, m.units, m.elixir)
	for _, p := range m.players {
		m.notify(p, network.MsgGameState, snap)
	}
	return false
}

// PlayCard spends elixir to spawn a unit for the participant's side. The check and the
// deduction happen under the match lock, so concurrent plays and ticks cannot interleave
// between them.
func (m *Match) PlayCard(connID string, req models.CardRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	side := m.sideOf(connID)
	if side < 0 {
		return m.reject(connID, req, ErrNotParticipant)
	}
	if m.status != models.StatusRunning {
		return m.reject(connID, req, ErrMatchNotRunning)
	}
	if !finite(req.Cost) || req.Cost < 0 {
		return m.reject(connID, req, fmt.Errorf("%w: cost %v", ErrInvalidCard, req.Cost))
	}
	if req.Position != nil && !(finite(req.Position.X) && finite(req.Position.Y)) {
		return m.reject(connID, req, fmt.Errorf("%w: bad position", ErrInvalidCard))
	}
	if m.elixir[side] < req.Cost {
		return m.reject(connID, req, fmt.Errorf("%w: have %.1f, need %.1f", ErrInsufficientElixir, m.elixir[side], req.Cost))
	}

	m.elixir[side] -= req.Cost
	at := m.cfg.Game.Spawns[side]
	if req.Position != nil {
		at = *req.Position
	}
	unit := game.NewUnit(uuid.NewString(), req.UnitType, side, at, m.cfg.Game.Unit)
	m.units = append(m.units, unit)
	m.metrics.Add(telemetry.MetricPlaysAccepted, 1)
	m.logger.Printf("[Match %s] side %d played %s at (%.0f, %.0f), elixir now %.1f", m.id, side, req.UnitType, at.X, at.Y, m.elixir[side])
	return nil
}

func (m *Match) reject(connID string, req models.CardRequest, err error) error {
	m.metrics.Add(telemetry.MetricPlaysRejected, 1)
	m.logger.Printf("[Match %s] rejected %s from %s: %v", m.id, req.UnitType, connID, err)
	return err
}

// HandleDisconnect forfeits the match for the leaving participant. It reports whether this
// call ended the match; repeated calls and calls after the end are no-ops. When it returns,
// the tick driver has stopped.
func (m *Match) HandleDisconnect(connID string) bool {
	m.mu.Lock()
	side := m.sideOf(connID)
	if side < 0 || m.status != models.StatusRunning {
		m.mu.Unlock()
		return false
	}
	m.logger.Printf("[Match %s] %s (side %d) disconnected", m.id, m.players[side].PlayerID, side)
	ended := m.endLocked(1-side, "opponent disconnected")
	m.mu.Unlock()

	if ended {
		<-m.driverDone
		m.finish()
	}
	return ended
}

// endLocked moves the match to Ended. The driver's stop channel closes in the same
// critical section, and Tick re-checks status under the lock, so no tick body runs after
// this returns.
func (m *Match) endLocked(winner int, reason string) bool {
	if m.status == models.StatusEnded {
		return false
	}
	m.status = models.StatusEnded
	m.winner = winner
	close(m.stop)
	m.metrics.Add(telemetry.MetricMatchesEnded, 1)
	m.logger.Printf("[Match %s] ended at tick %d: side %d wins (%s)", m.id, m.tick, winner, reason)

	for _, p := range m.players {
		m.notify(p, network.MsgGameEnd, network.GameEnd{Winner: winner})
	}

	if m.cfg.Recorder != nil {
		m.persistWG.Add(1)
		go m.recordWinner(winner)
	}
	return true
}

func (m *Match) finish() {
	m.endOnce.Do(func() {
		if m.cfg.OnEnd != nil {
			m.cfg.OnEnd(m)
		}
	})
}

// Done is closed once the tick driver has exited.
func (m *Match) Done() <-chan struct{} {
	return m.driverDone
}

// Wait blocks until background persistence calls finished.
func (m *Match) Wait() {
	m.persistWG.Wait()
}

// finite rejects values the JSON codec cannot encode.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (m *Match) sideOf(connID string) int {
	for side, p := range m.players {
		if p != nil && p.ConnID == connID {
			return side
		}
	}
	return -1
}

func (m *Match) notify(p *Participant, msgType string, payload any) {
	if p == nil || p.Out == nil {
		return
	}
	if err := p.Out.Send(msgType, payload); err != nil {
		m.logger.Printf("[Match %s] failed to send %s to %s: %v", m.id, msgType, p.PlayerID, err)
	}
}

func (m *Match) createRecord() {
	defer m.persistWG.Done()
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PersistTimeout)
	defer cancel()

	id, err := m.cfg.Recorder.CreateMatchRecord(ctx, m.players[0].PlayerID, m.players[1].PlayerID)
	if err != nil {
		m.metrics.Add(telemetry.MetricPersistenceFailures, 1)
		m.logger.Printf("[Match %s] failed to create match record: %v", m.id, err)
		id = ""
	}
	m.recordID <- id
}

// recordWinner waits for the record created at start, then falls back to matching on the
// participants if that record could not be created.
func (m *Match) recordWinner(winner int) {
	defer m.persistWG.Done()
	id := <-m.recordID

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PersistTimeout)
	defer cancel()
	ref := models.MatchRef{ID: id, Player1ID: m.players[0].PlayerID, Player2ID: m.players[1].PlayerID}
	if err := m.cfg.Recorder.RecordWinner(ctx, ref, m.players[winner].PlayerID); err != nil {
		m.metrics.Add(telemetry.MetricPersistenceFailures, 1)
		m.logger.Printf("[Match %s] failed to record winner %s: %v", m.id, m.players[winner].PlayerID, err)
	}
}

// Summary is a compact view of a match for the debug endpoint.
type Summary struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Tick       uint64     `json:"tick"`
	Players    [2]string  `json:"players"`
	Elixir     [2]float64 `json:"elixir"`
	KingHealth [2]float64 `json:"kingHealth"`
	Units      int        `json:"units"`
	Winner     int        `json:"winner"`
}

// Summarize returns the match's current Summary.
func (m *Match) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{
		ID:     m.id,
		Status: m.status.String(),
		Tick:   m.tick,
		Elixir: m.elixir,
		Units:  len(m.units),
		Winner: m.winner,
	}
	for side, p := range m.players {
		if p != nil {
			s.Players[side] = p.PlayerID
		}
	}
	for _, t := range m.towers {
		if t.Role == models.RoleKing {
			s.KingHealth[t.Team] = t.Health
		}
	}
	return s
}
