package hass

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid http", Config{URL: "http://hub.local:8123", Token: "tok"}, false},
		{"valid https", Config{URL: "https://hub.example.com", Token: "tok"}, false},
		{"missing url", Config{Token: "tok"}, true},
		{"missing token", Config{URL: "http://hub.local:8123"}, true},
		{"bad scheme", Config{URL: "ftp://hub.local", Token: "tok"}, true},
		{"no host", Config{URL: "http://", Token: "tok"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v should wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{URL: "http://hub.local:8123", Token: "tok"}
	cfg.applyDefaults()

	if cfg.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout = %s, want 10s", cfg.HandshakeTimeout)
	}
	if cfg.Reconnect.BackoffBase != 1*time.Second {
		t.Errorf("BackoffBase = %s, want 1s", cfg.Reconnect.BackoffBase)
	}
	if cfg.Reconnect.BackoffCap != 30*time.Second {
		t.Errorf("BackoffCap = %s, want 30s", cfg.Reconnect.BackoffCap)
	}
	if cfg.Reconnect.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Reconnect.MaxAttempts)
	}

	// Explicit values survive.
	tuned := Config{URL: "http://hub.local", Token: "tok", HandshakeTimeout: 3 * time.Second}
	tuned.applyDefaults()
	if tuned.HandshakeTimeout != 3*time.Second {
		t.Errorf("HandshakeTimeout = %s, want 3s", tuned.HandshakeTimeout)
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://hub.local:8123", "ws://hub.local:8123/api/websocket"},
		{"https://hub.example.com", "wss://hub.example.com/api/websocket"},
		{"http://hub.local:8123/", "ws://hub.local:8123/api/websocket"},
	}

	for _, tt := range tests {
		cfg := Config{URL: tt.url}
		if got := cfg.websocketURL(); got != tt.want {
			t.Errorf("websocketURL(%s) = %s, want %s", tt.url, got, tt.want)
		}
	}
}
