package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/hearthvoice/hearth-core/internal/infrastructure/config"
)

// ErrNoSettings is returned by LoadHub when no hub settings have been saved.
var ErrNoSettings = errors.New("settings: no hub settings stored")

// Store configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	// Restrictive: the file holds the hub access token.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS hub_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	url TEXT NOT NULL,
	token TEXT NOT NULL,
	auto_discovery INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
);
`

// HubSettings is the persisted hub connection configuration.
type HubSettings struct {
	URL           string
	Token         string
	AutoDiscovery bool
	UpdatedAt     time.Time
}

// Store persists runtime settings in SQLite.
//
// Thread Safety: all methods are safe for concurrent use; SQLite access is
// serialised through a single connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the settings store, creating the database file and schema if
// they do not exist.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Sets restrictive file permissions (0600)
//  5. Ensures the schema exists
func Open(cfg config.DatabaseConfig) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	// File might not exist until the first write on some first runs.
	_ = os.Chmod(cfg.Path, filePermissions)

	return &Store{db: db, path: cfg.Path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing settings store: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (s *Store) Path() string {
	return s.path
}

// SaveHub stores the hub settings, replacing any previous row.
func (s *Store) SaveHub(ctx context.Context, hub HubSettings) error {
	autoDiscovery := 0
	if hub.AutoDiscovery {
		autoDiscovery = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hub_settings (id, url, token, auto_discovery, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			token = excluded.token,
			auto_discovery = excluded.auto_discovery,
			updated_at = excluded.updated_at`,
		hub.URL, hub.Token, autoDiscovery, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving hub settings: %w", err)
	}
	return nil
}

// LoadHub returns the stored hub settings, or ErrNoSettings when the hub has
// never been configured at runtime.
func (s *Store) LoadHub(ctx context.Context) (HubSettings, error) {
	var (
		hub           HubSettings
		autoDiscovery int
		updatedAt     string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT url, token, auto_discovery, updated_at FROM hub_settings WHERE id = 1",
	).Scan(&hub.URL, &hub.Token, &autoDiscovery, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return HubSettings{}, ErrNoSettings
	}
	if err != nil {
		return HubSettings{}, fmt.Errorf("loading hub settings: %w", err)
	}

	hub.AutoDiscovery = autoDiscovery != 0
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		hub.UpdatedAt = t
	}
	return hub, nil
}

// ClearHub removes any stored hub settings.
func (s *Store) ClearHub(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM hub_settings WHERE id = 1"); err != nil {
		return fmt.Errorf("clearing hub settings: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is accessible and functioning.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("settings store health check failed: %w", err)
	}
	return nil
}
