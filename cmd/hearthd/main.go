// Hearth Core - voice-assistant home-automation bridge
//
// This is the main entry point for the Hearth Core daemon. It connects a
// voice-assistant front end to a Home Assistant hub: a persistent bridge
// keeps a local device cache live, a local HTTP API exposes lookup and
// control, and optional MQTT/InfluxDB consumers mirror state changes for
// companion services.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthvoice/hearth-core/internal/api"
	"github.com/hearthvoice/hearth-core/internal/bridges/hass"
	"github.com/hearthvoice/hearth-core/internal/infrastructure/config"
	"github.com/hearthvoice/hearth-core/internal/infrastructure/logging"
	"github.com/hearthvoice/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthvoice/hearth-core/internal/settings"
	"github.com/hearthvoice/hearth-core/internal/statepub"
	"github.com/hearthvoice/hearth-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open settings store
	store, err := settings.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer func() {
		log.Info("closing settings store")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing settings store", "error", closeErr)
		}
	}()
	log.Info("settings store opened", "path", store.Path())

	// Create the hub bridge and configure it from saved settings, falling
	// back to the config file. A hub that is down at boot is not fatal;
	// the API can reconfigure at any time.
	bridge := hass.New(log.With("component", "hass"))
	defer bridge.Disconnect()
	configureHub(ctx, cfg, store, bridge, log)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		// Mirror bridge state onto the bus
		publisher := statepub.New(mqttClient, bridge, log.With("component", "statepub"))
		if err := publisher.Start(); err != nil {
			return fmt.Errorf("starting state publisher: %w", err)
		}
		defer publisher.Stop()

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			publisher.PublishHubStatus()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var writer *telemetry.Writer
	if cfg.InfluxDB.Enabled {
		writer, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := writer.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		writer.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Record every device state change
		unsubscribe := bridge.OnStateChange(func(dev hass.Device) {
			brightness := -1
			if dev.Brightness != nil {
				brightness = *dev.Brightness
			}
			writer.WriteStateChange(dev.EntityID, string(dev.Type), dev.State, dev.Active, brightness)
		})
		defer unsubscribe()
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the HTTP API
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log.With("component", "api"),
		Bridge:   bridge,
		Settings: store,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, store, mqttClient, writer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. State publisher + MQTT (if enabled)
	// 4. Bridge
	// 5. Settings store

	log.Info("Hearth Core stopped")
	return nil
}

// configureHub connects the bridge using stored settings when present,
// otherwise the config file's hub section. Failures are logged, not fatal:
// the daemon stays up so the hub can be (re)configured through the API.
func configureHub(ctx context.Context, cfg *config.Config, store *settings.Store, bridge *hass.Bridge, log *logging.Logger) {
	hubCfg, source, ok := resolveHubConfig(ctx, cfg, store, log)
	if !ok {
		log.Info("no hub configured, waiting for configuration via API")
		return
	}

	count, err := bridge.Configure(ctx, hubCfg)
	if err != nil {
		if hass.IsAuthError(err) {
			log.Error("hub rejected the stored access token, reconfigure via API", "source", source)
			return
		}
		log.Warn("hub unavailable at startup", "source", source, "error", err)
		return
	}

	log.Info("hub configured", "source", source, "devices", count)
}

// resolveHubConfig picks the hub settings to boot with. Stored runtime
// settings win over the config file.
func resolveHubConfig(ctx context.Context, cfg *config.Config, store *settings.Store, log *logging.Logger) (hass.Config, string, bool) {
	reconnect := hass.ReconnectConfig{
		BackoffBase: time.Duration(cfg.Hub.Reconnect.InitialDelay) * time.Second,
		BackoffCap:  time.Duration(cfg.Hub.Reconnect.MaxDelay) * time.Second,
		MaxAttempts: cfg.Hub.Reconnect.MaxAttempts,
	}

	saved, err := store.LoadHub(ctx)
	if err == nil {
		return hass.Config{
			URL:              saved.URL,
			Token:            saved.Token,
			AutoDiscovery:    saved.AutoDiscovery,
			HandshakeTimeout: cfg.GetHandshakeTimeout(),
			Reconnect:        reconnect,
		}, "settings", true
	}
	if !errors.Is(err, settings.ErrNoSettings) {
		log.Warn("loading stored hub settings", "error", err)
	}

	if cfg.Hub.URL == "" {
		return hass.Config{}, "", false
	}

	return hass.Config{
		URL:              cfg.Hub.URL,
		Token:            cfg.Hub.Token,
		AutoDiscovery:    cfg.Hub.AutoDiscovery,
		HandshakeTimeout: cfg.GetHandshakeTimeout(),
		Reconnect:        reconnect,
	}, "config", true
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and writer may be nil when disabled.
func healthCheck(ctx context.Context, store *settings.Store, mqttClient *mqtt.Client, writer *telemetry.Writer) error {
	if err := store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if writer != nil {
		if err := writer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Hub health is reported through the bridge status; an unreachable hub
	// at boot is not a daemon failure.

	return nil
}
