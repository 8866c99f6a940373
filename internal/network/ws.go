package network

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tcr-arena/internal/telemetry"
)

var (
	// ErrConnClosed is returned by Send after the connection shut down.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when the outbox cannot take another frame.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrMalformedFrame wraps frames that arrived intact but could not be decoded.
	ErrMalformedFrame = errors.New("malformed frame")
)

// WSConfig tunes a websocket connection.
type WSConfig struct {
	SendBuffer int
	WriteWait  time.Duration
	PongWait   time.Duration
	ReadLimit  int64
	Logger     telemetry.Logger
	Metrics    telemetry.Metrics
}

// DefaultWSConfig returns the settings used by the server.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		SendBuffer: 64,
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		ReadLimit:  1 << 16,
	}
}

// WSConn wraps a websocket with a bounded outbox drained by its own writer goroutine, so
// Send never blocks the caller.
type WSConn struct {
	id      string
	conn    *websocket.Conn
	codec   Codec
	cfg     WSConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writerWG  sync.WaitGroup
}

// NewWSConn starts the writer for conn.
func NewWSConn(id string, conn *websocket.Conn, codec Codec, cfg WSConfig) *WSConn {
	defaults := DefaultWSConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaults.ReadLimit
	}
	if codec == nil {
		codec = JSONCodec
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics
	}

	c := &WSConn{
		id:      id,
		conn:    conn,
		codec:   codec,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
	}

	conn.SetReadLimit(cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	c.writerWG.Add(1)
	go c.writePump()
	return c
}

// ID returns the connection identifier.
func (c *WSConn) ID() string {
	return c.id
}

// Codec returns the codec negotiated for this connection.
func (c *WSConn) Codec() Codec {
	return c.codec
}

// Send encodes the message and queues it for the writer. It never blocks.
func (c *WSConn) Send(msgType string, payload any) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	data, err := c.codec.Encode(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.metrics.Add(telemetry.MetricMessagesDropped, 1)
		c.logger.Printf("[Conn %s] outbox full, dropping %s", c.id, msgType)
		return ErrSendBufferFull
	}
}

// ReadEnvelope blocks until the next frame arrives and decodes its envelope. Decode
// failures wrap ErrMalformedFrame; any other error means the connection is gone.
func (c *WSConn) ReadEnvelope() (Envelope, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}
	env, err := c.codec.DecodeEnvelope(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return env, nil
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writerWG.Wait()
		err = c.conn.Close()
	})
	return err
}

func (c *WSConn) writePump() {
	defer c.writerWG.Done()
	ping := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			if !c.write(c.codec.FrameType(), data) {
				c.drainAfterFailure()
				return
			}
		case <-ping.C:
			if !c.write(websocket.PingMessage, nil) {
				c.drainAfterFailure()
				return
			}
		}
	}
}

// flush writes whatever is still queued, so a game_end queued right before Close is
// delivered.
func (c *WSConn) flush() {
	for {
		select {
		case data := <-c.send:
			if !c.write(c.codec.FrameType(), data) {
				return
			}
		default:
			return
		}
	}
}

func (c *WSConn) write(frameType int, data []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := c.conn.WriteMessage(frameType, data); err != nil {
		c.logger.Printf("[Conn %s] write failed: %v", c.id, err)
		return false
	}
	return true
}

// drainAfterFailure closes the socket so the reader unblocks and tears the session down.
func (c *WSConn) drainAfterFailure() {
	_ = c.conn.Close()
}
