package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tcr-arena/internal/network"
	"tcr-arena/internal/telemetry"
)

// ControllerConfig wires the controller to its collaborators.
type ControllerConfig struct {
	Auth        Authenticator
	AuthTimeout time.Duration
	Logger      telemetry.Logger
}

// Controller routes inbound messages to the queue or the player's match. It holds no game
// state of its own.
type Controller struct {
	queue    *Queue
	sessions *SessionManager
	auth     Authenticator
	timeout  time.Duration
	logger   telemetry.Logger
}

// NewController creates a controller over queue.
func NewController(queue *Queue, sessions *SessionManager, cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 5 * time.Second
	}
	if sessions == nil {
		sessions = NewSessionManager()
	}
	return &Controller{
		queue:    queue,
		sessions: sessions,
		auth:     cfg.Auth,
		timeout:  cfg.AuthTimeout,
		logger:   cfg.Logger,
	}
}

// Sessions returns the session registry.
func (c *Controller) Sessions() *SessionManager {
	return c.sessions
}

// Connect registers a new connection.
func (c *Controller) Connect(conn Conn) *Session {
	sess := c.sessions.Create(conn)
	c.logger.Printf("[Conn %s] connected", conn.ID())
	return sess
}

// Disconnect tears the session down: it leaves the queue or forfeits its match.
func (c *Controller) Disconnect(sess *Session) {
	if !c.sessions.Remove(sess.ConnID()) {
		return
	}
	c.queue.Remove(sess.ConnID())
	c.logger.Printf("[Conn %s] disconnected (player %q)", sess.ConnID(), sess.PlayerID())
}

// Handle dispatches one inbound envelope.
func (c *Controller) Handle(ctx context.Context, sess *Session, env network.Envelope) {
	switch env.Type {
	case network.MsgIdentify:
		c.handleIdentify(ctx, sess, env)
	case network.MsgJoinQueue:
		c.handleJoinQueue(sess)
	case network.MsgPlayCard:
		c.handlePlayCard(sess, env)
	default:
		c.sendError(sess, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (c *Controller) handleIdentify(ctx context.Context, sess *Session, env network.Envelope) {
	req, err := network.DecodePayload[network.IdentifyRequest](sess.conn.Codec(), env)
	if err != nil || req.PlayerID == "" {
		c.sendError(sess, "identify needs a playerId")
		return
	}
	if c.auth == nil {
		c.sendError(sess, "authentication unavailable")
		return
	}
	if current := sess.PlayerID(); current != "" {
		c.sendError(sess, fmt.Sprintf("already identified as %s", current))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	acc, err := handleLogin(ctx, c.auth, c.logger, sess, req.PlayerID, req.Password)
	if err != nil {
		c.sendError(sess, "identify failed: "+err.Error())
		return
	}
	c.send(sess, network.MsgIdentified, network.Identified{PlayerID: acc.ID})
}

func (c *Controller) handleJoinQueue(sess *Session) {
	if sess.PlayerID() == "" {
		c.sendError(sess, ErrNotIdentified.Error())
		return
	}
	if _, err := c.queue.Enqueue(sess.Participant()); err != nil {
		c.sendError(sess, err.Error())
	}
}

func (c *Controller) handlePlayCard(sess *Session, env network.Envelope) {
	req, err := network.DecodePayload[network.PlayCardRequest](sess.conn.Codec(), env)
	if err != nil {
		c.send(sess, network.MsgPlayRejected, network.PlayRejected{Reason: "malformed play_card: " + err.Error()})
		return
	}
	m, ok := c.queue.LookupMatch(sess.ConnID())
	if !ok {
		c.send(sess, network.MsgPlayRejected, network.PlayRejected{UnitType: req.UnitType, Reason: "not in a match"})
		return
	}
	if err := m.PlayCard(sess.ConnID(), req); err != nil {
		c.send(sess, network.MsgPlayRejected, network.PlayRejected{UnitType: req.UnitType, Reason: rejectReason(err)})
	}
}

// rejectReason maps PlayCard errors to short client-facing reasons.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientElixir):
		return "insufficient elixir"
	case errors.Is(err, ErrMatchNotRunning):
		return "match is not running"
	case errors.Is(err, ErrNotParticipant):
		return "not a participant"
	case errors.Is(err, ErrInvalidCard):
		return "invalid card"
	default:
		return err.Error()
	}
}

func (c *Controller) send(sess *Session, msgType string, payload any) {
	if err := sess.conn.Send(msgType, payload); err != nil {
		c.logger.Printf("[Conn %s] failed to send %s: %v", sess.ConnID(), msgType, err)
	}
}

func (c *Controller) sendError(sess *Session, msg string) {
	c.send(sess, network.MsgError, network.ErrorMessage{Message: msg})
}
