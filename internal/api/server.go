package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	zwbridge "github.com/nerrad567/gray-logic-zwave/internal/bridges/zwave"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-zwave/internal/journal"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandSource is recorded with every command submitted over HTTP.
const commandSource = "api"

// Session is the read side of the Z-Wave session. *zwave.Session satisfies it.
type Session interface {
	Stats() zw.Stats
	Cache() *zw.Cache
}

// CommandRunner executes commands. *commands.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, source string, cmd zw.Command) error
}

// EventStore is the query side of the journal. *journal.Journal satisfies it.
type EventStore interface {
	Events(ctx context.Context, f journal.EventFilter) ([]journal.EventEntry, error)
	Commands(ctx context.Context, f journal.CommandFilter) ([]journal.CommandEntry, error)
	Stats() journal.Stats
}

// BridgeStatus reports MQTT bridge counters. *zwave.Bridge satisfies it.
type BridgeStatus interface {
	GetMetrics() zwbridge.BridgeMetrics
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Session  Session
	Runner   CommandRunner
	Journal  EventStore   // optional
	Bridge   BridgeStatus // optional
	Metrics  http.Handler // optional, served on /metrics
	Version  string
}

// Server is the HTTP API server.
//
// It owns the WebSocket hub from New onwards so the hub can be registered as
// an event sink before the session starts. The listener starts with Start.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	session  Session
	runner   CommandRunner
	journal  EventStore
	bridge   BridgeStatus
	metrics  http.Handler
	version  string
	started  time.Time
	server   *http.Server
	listener net.Listener
	hub      *Hub
	tickets  *ticketStore
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("command runner is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		session: deps.Session,
		runner:  deps.Runner,
		journal: deps.Journal,
		bridge:  deps.Bridge,
		metrics: deps.Metrics,
		version: deps.Version,
		started: time.Now(),
		hub:     NewHub(deps.WS, deps.Logger),
		tickets: newTicketStore(),
	}, nil
}

// Hub returns the WebSocket hub. Register it with the session's sinks to
// stream events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It binds the listener synchronously so a port conflict is reported here,
// then serves in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
