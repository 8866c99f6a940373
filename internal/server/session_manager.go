package server

import (
	"sort"
	"sync"
	"time"

	"tcr-arena/internal/network"
)

// Conn is the transport side of a session.
type Conn interface {
	Outbox
	ID() string
	Codec() network.Codec
	Close() error
}

// Session is one connected client. It becomes bound to a player once identified.
type Session struct {
	conn        Conn
	connectedAt time.Time

	mu       sync.Mutex
	playerID string
}

// ConnID returns the transport connection ID.
func (s *Session) ConnID() string {
	return s.conn.ID()
}

// PlayerID returns the identified player, or "" before identify succeeded.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

func (s *Session) bind(playerID string) {
	s.mu.Lock()
	s.playerID = playerID
	s.mu.Unlock()
}

// Participant returns the session as a match participant.
func (s *Session) Participant() *Participant {
	return &Participant{ConnID: s.conn.ID(), PlayerID: s.PlayerID(), Out: s.conn}
}

// SessionManager tracks every connected session.
type SessionManager struct {
	sessions map[string]*Session // connID -> Session
	mu       sync.RWMutex
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Create registers a session for conn.
func (sm *SessionManager) Create(conn Conn) *Session {
	sess := &Session{conn: conn, connectedAt: time.Now()}
	sm.mu.Lock()
	sm.sessions[conn.ID()] = sess
	sm.mu.Unlock()
	return sess
}

// Get retrieves a session by connection ID.
func (sm *SessionManager) Get(connID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[connID]
	return sess, ok
}

// Remove forgets a session and reports whether it was registered.
func (sm *SessionManager) Remove(connID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, ok := sm.sessions[connID]
	delete(sm.sessions, connID)
	return ok
}

// Count returns the number of connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// List returns the sessions, oldest connection first.
func (sm *SessionManager) List() []*Session {
	sm.mu.RLock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	sm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].connectedAt.Before(out[j].connectedAt) })
	return out
}

// CloseAll closes every session's transport concurrently and waits for all of them.
// Teardown happens in each connection's reader.
func (sm *SessionManager) CloseAll() {
	var wg sync.WaitGroup
	for _, s := range sm.List() {
		wg.Add(1)
		go func(conn Conn) {
			defer wg.Done()
			_ = conn.Close()
		}(s.conn)
	}
	wg.Wait()
}
