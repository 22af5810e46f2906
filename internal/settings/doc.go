// Package settings persists runtime configuration for Hearth Core.
//
// The hub connection settings (URL, access token) can be supplied two ways:
// statically in config.yaml, or at runtime through the API. Runtime-supplied
// settings are stored here, in SQLite, so the daemon reconnects to the hub
// automatically after a restart without the operator re-entering the token.
//
// # Precedence
//
// Stored settings win over the config file: a hub configured through the API
// stays configured even if config.yaml carries stale values.
//
// # Security Considerations
//
//   - The database file is created with 0600 permissions; it holds the
//     long-lived hub token.
//   - Tokens are never logged.
//
// # Usage
//
//	store, err := settings.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	hub, err := store.LoadHub(ctx)
//	if errors.Is(err, settings.ErrNoSettings) {
//	    // wait for runtime configuration
//	}
package settings
