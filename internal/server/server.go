package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tcr-arena/internal/models"
	"tcr-arena/internal/network"
	"tcr-arena/internal/telemetry"
)

const (
	DefaultListenAddress = ":4000"
)

// Config holds everything the server needs at startup.
type Config struct {
	Addr         string
	Game         models.GameConfig
	Recorder     Recorder
	Auth         Authenticator
	QueueMaxWait time.Duration
	WS           network.WSConfig
	Logger       telemetry.Logger
	Metrics      *telemetry.Counters
	// NewTicker overrides the match tick source; nil uses wall-clock tickers.
	NewTicker func(time.Duration) Ticker
}

// Server represents the main game server.
type Server struct {
	addr       string
	logger     telemetry.Logger
	metrics    *telemetry.Counters
	wsConfig   network.WSConfig
	upgrader   websocket.Upgrader
	queue      *Queue
	controller *Controller
	httpServer *http.Server
	startedAt  time.Time

	mu        sync.Mutex
	listener  net.Listener
	stopClean context.CancelFunc
	janitorWG sync.WaitGroup
}

// NewServer validates the game config and wires the queue, controller and HTTP routes.
// An invalid config is fatal: the server never listens with it.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Game.Validate(); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultListenAddress
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.WrapLogger(log.Default())
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewCounters()
	}
	cfg.WS.Logger = cfg.Logger
	cfg.WS.Metrics = cfg.Metrics

	queue := NewQueue(QueueConfig{
		Match: MatchConfig{
			Game:      cfg.Game,
			Recorder:  cfg.Recorder,
			NewTicker: cfg.NewTicker,
		},
		MaxWait: cfg.QueueMaxWait,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})

	s := &Server{
		addr:     cfg.Addr,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		wsConfig: cfg.WS,
		upgrader: websocket.Upgrader{
			// Browser clients are served from anywhere during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		queue:      queue,
		controller: NewController(queue, NewSessionManager(), ControllerConfig{Auth: cfg.Auth, Logger: cfg.Logger}),
		startedAt:  time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Queue returns the matchmaking queue.
func (s *Server) Queue() *Queue {
	return s.queue
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/debug/stats", s.handleStats)
	return mux
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Printf("Error listening on %s: %v", s.addr, err)
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.listener = l
	s.stopClean = cancel
	s.mu.Unlock()

	s.janitorWG.Add(1)
	go func() {
		defer s.janitorWG.Done()
		s.queue.RunJanitor(ctx)
	}()

	s.logger.Printf("Server listening for websocket connections on %s", l.Addr())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address once serving, or the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting connections, closes the open ones (forfeiting their matches) and
// waits for in-flight persistence.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Printf("Stopping server...")
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	if s.stopClean != nil {
		s.stopClean()
	}
	s.mu.Unlock()
	s.janitorWG.Wait()

	// Hijacked websocket connections are not closed by http.Server.Shutdown.
	s.controller.Sessions().CloseAll()
	if drainErr := s.queue.Drain(ctx); drainErr != nil && err == nil {
		err = drainErr
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	codec := network.CodecByName(r.URL.Query().Get("codec"))
	conn := network.NewWSConn(uuid.NewString(), ws, codec, s.wsConfig)
	defer conn.Close()

	sess := s.controller.Connect(conn)
	defer s.controller.Disconnect(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, network.ErrMalformedFrame) {
				s.controller.sendError(sess, err.Error())
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("[Conn %s] read ended: %v", conn.ID(), err)
			}
			return
		}
		s.controller.Handle(ctx, sess, env)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats is the /debug/stats document.
type Stats struct {
	UptimeSeconds float64           `json:"uptimeSeconds"`
	Connections   int               `json:"connections"`
	QueueLength   int               `json:"queueLength"`
	Counters      map[string]uint64 `json:"counters"`
	Matches       []Summary         `json:"matches"`
}

// CollectStats gathers the current Stats.
func (s *Server) CollectStats() Stats {
	matches := s.queue.Matches()
	summaries := make([]Summary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, m.Summarize())
	}
	return Stats{
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Connections:   s.controller.Sessions().Count(),
		QueueLength:   s.queue.Len(),
		Counters:      s.metrics.Snapshot(),
		Matches:       summaries,
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.CollectStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
