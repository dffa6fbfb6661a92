package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/automation"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/peripheral"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Peripherals is the read side of the peripheral registry.
type Peripherals interface {
	Describe() []peripheral.Info
	Pins() map[string]map[string]int
}

// Rules is the read side of the automation registry.
type Rules interface {
	Snapshot() []automation.Rule
	Get(id string) (automation.Rule, error)
	Len() int
}

// Connection reports broker connectivity.
type Connection interface {
	IsConnected() bool
}

// LoopStats reports the agent's background loop counters.
type LoopStats interface {
	HeartbeatCount() int
	EvaluatorStats() (passes, fired uint64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Device      config.DeviceConfig
	Logger      *logging.Logger
	Peripherals Peripherals
	Rules       Rules
	MQTT        Connection   // optional
	Loops       LoopStats    // optional
	Metrics     http.Handler // optional; served at /metrics
	ExternalHub *Hub         // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP status API server for Gray Logic Node.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	device      config.DeviceConfig
	logger      *logging.Logger
	peripherals Peripherals
	rules       Rules
	mqtt        Connection
	loops       LoopStats
	metrics     http.Handler
	version     string
	startTime   time.Time
	server      *http.Server
	listener    net.Listener
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, peripherals, rules)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Peripherals == nil {
		return nil, fmt.Errorf("peripheral registry is required")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("automation registry is required")
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		device:      deps.Device,
		logger:      deps.Logger,
		peripherals: deps.Peripherals,
		rules:       deps.Rules,
		mqtt:        deps.MQTT,
		loops:       deps.Loops,
		metrics:     deps.Metrics,
		version:     deps.Version,
		startTime:   time.Now(),
		hub:         deps.ExternalHub,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless one was injected), binds the listener
// and serves in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and background goroutines
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

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

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
