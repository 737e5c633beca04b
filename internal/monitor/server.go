package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/feedback-core/internal/cabinet"
	"github.com/nerrad567/feedback-core/internal/eventlog"
	"github.com/nerrad567/feedback-core/internal/infrastructure/config"
	"github.com/nerrad567/feedback-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// Cabinet is the part of *cabinet.Cabinet the monitor uses.
type Cabinet interface {
	Stats() cabinet.Stats
	ApplyLayer(toyName string, nr int, payload []byte) error
}

// Deps holds the dependencies required by the monitor server.
type Deps struct {
	Config  config.MonitorConfig
	Logger  *logging.Logger
	Cabinet Cabinet
	Events  eventlog.Repository // optional: /events answers 503 without it
	Version string
}

// Server is the status HTTP server of the feedback daemon.
type Server struct {
	cfg      config.MonitorConfig
	logger   *logging.Logger
	cabinet  Cabinet
	events   eventlog.Repository
	version  string
	hub      *Hub
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a monitor server. The hub exists immediately so frame and
// state hooks can be wired before Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Cabinet == nil {
		return nil, errors.New("cabinet is required")
	}
	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		cabinet: deps.Cabinet,
		events:  deps.Events,
		version: deps.Version,
		hub:     NewHub(deps.Config.Stream, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler { return s.buildRouter() }

// Start binds the listener and serves in the background until Close.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor listen on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server error", "error", err)
		}
	}()

	s.logger.Info("monitor server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server and disconnects WebSocket clients.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("monitor server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down monitor server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("monitor health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("monitor server not started")
	}
	return nil
}
