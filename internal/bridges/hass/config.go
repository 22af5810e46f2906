package hass

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Default connection tuning values.
const (
	// defaultHandshakeTimeout bounds the time from WebSocket dial to the
	// authenticated state.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultRequestTimeout is the timeout for a single correlated
	// WebSocket request.
	defaultRequestTimeout = 10 * time.Second

	// defaultHTTPTimeout is the timeout for REST calls to the hub.
	defaultHTTPTimeout = 10 * time.Second

	// defaultBackoffBase is the base delay for reconnection backoff.
	defaultBackoffBase = 1 * time.Second

	// defaultBackoffCap is the maximum delay between reconnection attempts.
	defaultBackoffCap = 30 * time.Second

	// defaultMaxReconnectAttempts is how many consecutive reconnection
	// attempts are made before the bridge settles on "disconnected".
	defaultMaxReconnectAttempts = 5
)

// Config holds the hub connection settings consumed by the bridge.
//
// The configuration is immutable once Configure succeeds; replacing it
// requires a full reconfigure, which tears down the connection and clears
// the entity cache.
type Config struct {
	// URL is the base URL of the hub (e.g. "http://homeassistant.local:8123").
	URL string

	// Token is the long-lived access token used for both REST calls and the
	// WebSocket authentication handshake.
	Token string

	// AutoDiscovery enables the best-effort entity/area registry load during
	// configuration. Lookups by area degrade gracefully when disabled.
	AutoDiscovery bool

	// HandshakeTimeout bounds the WebSocket authentication handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// Reconnect tunes the reconnection supervisor.
	Reconnect ReconnectConfig
}

// ReconnectConfig contains reconnection backoff settings.
type ReconnectConfig struct {
	// BackoffBase is the base delay; attempt n waits min(base × 2^(n+1), cap).
	// Default: 1 second.
	BackoffBase time.Duration

	// BackoffCap is the maximum delay between attempts. Default: 30 seconds.
	BackoffCap time.Duration

	// MaxAttempts limits consecutive reconnection attempts before the bridge
	// reports a persistent disconnected status. Default: 5.
	MaxAttempts int
}

// applyDefaults fills zero-valued tuning fields with defaults.
func (c *Config) applyDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.Reconnect.BackoffBase == 0 {
		c.Reconnect.BackoffBase = defaultBackoffBase
	}
	if c.Reconnect.BackoffCap == 0 {
		c.Reconnect.BackoffCap = defaultBackoffCap
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = defaultMaxReconnectAttempts
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: parsing url: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url host is required", ErrInvalidConfig)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	return nil
}

// websocketURL derives the WebSocket endpoint from the configured base URL.
// http → ws and https → wss, with the hub's /api/websocket path appended.
func (c Config) websocketURL() string {
	base := strings.TrimRight(c.URL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/websocket"
}
