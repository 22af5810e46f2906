package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthvoice/hearth-core/internal/assist"
	"github.com/hearthvoice/hearth-core/internal/bridges/hass"
	"github.com/hearthvoice/hearth-core/internal/infrastructure/config"
	"github.com/hearthvoice/hearth-core/internal/infrastructure/logging"
	"github.com/hearthvoice/hearth-core/internal/settings"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HubBridge is the bridge surface the API server depends on.
type HubBridge interface {
	Configure(ctx context.Context, cfg hass.Config) (int, error)
	Disconnect()
	IsConfigured() bool
	Status() hass.Status
	GetAllDevices() []hass.Device
	GetDevicesByType(typ hass.DeviceType) []hass.Device
	GetDevicesByArea(area string) []hass.Device
	FindDevice(query string) (hass.Device, bool)
	TurnOn(ctx context.Context, query string, opts hass.TurnOnOptions) (hass.CommandResult, error)
	TurnOff(ctx context.Context, query string) (hass.CommandResult, error)
	Toggle(ctx context.Context, query string) (hass.CommandResult, error)
	SetBrightness(ctx context.Context, query string, pct int) (hass.CommandResult, error)
	ControlArea(ctx context.Context, area, action string, brightness *int) (hass.CommandResult, error)
}

// SettingsStore persists hub settings across restarts.
type SettingsStore interface {
	SaveHub(ctx context.Context, hub settings.HubSettings) error
	LoadHub(ctx context.Context) (settings.HubSettings, error)
	ClearHub(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger
	Bridge HubBridge

	// Settings is optional; without it hub configuration does not survive
	// restarts.
	Settings SettingsStore

	// Quality and Tier are optional assistant collaborators. Endpoints that
	// surface them return 503 when the collaborator is not wired.
	Quality assist.QualityScorer
	Tier    assist.TierClassifier

	Version string
}

// Server is the HTTP API server for Hearth Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	bridge   HubBridge
	settings SettingsStore
	quality  assist.QualityScorer
	tier     assist.TierClassifier
	version  string
	started  time.Time
	server   *http.Server
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
	if deps.Bridge == nil {
		return nil, fmt.Errorf("hub bridge is required")
	}
	// Settings, Quality, and Tier are optional.

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		bridge:   deps.Bridge,
		settings: deps.Settings,
		quality:  deps.Quality,
		tier:     deps.Tier,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; the server can be stopped
// with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	s.started = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
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
