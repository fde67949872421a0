package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/bridges/gateway"
	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ruuvi-bridge/internal/publisher"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every infrastructure client
// (database, MQTT, InfluxDB, Grafana Live).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// IngestStats reports gateway ingest counters.
// This interface is satisfied by *gateway.Bridge.
type IngestStats interface {
	Stats() gateway.Stats
}

// BrokerStats reports MQTT client counters.
// This interface is satisfied by *mqtt.Client.
type BrokerStats interface {
	Stats() mqtt.Stats
}

// PublishStats reports publisher counters.
// This interface is satisfied by *publisher.Publisher.
type PublishStats interface {
	Stats() publisher.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry

	// Mappings stores mappings posted to the API for the next start.
	// Optional; without it POST /mappings is rejected.
	Mappings device.MappingRepository

	// Checks are run by /health, keyed by component name. Optional.
	Checks map[string]HealthChecker

	Ingest  IngestStats  // optional
	Publish PublishStats // optional
	Broker  BrokerStats  // optional

	// ExternalHub, if set, is used instead of creating a hub, so the
	// publisher can broadcast to it before the server starts.
	ExternalHub *Hub

	Version string
}

// Server is the HTTP API server for the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registry  *device.Registry
	mappings  device.MappingRepository
	checks    map[string]HealthChecker
	ingest    IngestStats
	publish   PublishStats
	broker    BrokerStats
	version   string
	startTime time.Time

	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New validates deps and returns an unstarted server. Logger and Registry
// are required; everything else may be left zero.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Registry == nil:
		return nil, errors.New("api: device registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		mappings:  deps.Mappings,
		checks:    deps.Checks,
		ingest:    deps.Ingest,
		publish:   deps.Publish,
		broker:    deps.Broker,
		version:   deps.Version,
		startTime: time.Now(),
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port already in use is
// reported to the caller. Requests are served in a background goroutine
// until Close.
//
// Parameters:
//   - ctx: Parent context for the hub and background goroutines
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.hub.SetSource(s.registry)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Close stops the hub (unless injected) and shuts the listener down,
// giving in-flight requests up to 10s. A server that never started closes
// without error.
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

// HealthCheck fails until Start has run.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
