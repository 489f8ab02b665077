package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrNotAvailable           = errors.New("not available")
	ErrPastDate               = errors.New("cannot book in the past")
	ErrDateTooFar             = errors.New("date is too far in the future")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// DB wraps the sqlite connection holding bookings and the settings store.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens (creating if necessary) the sqlite database at path with WAL
// mode and a busy timeout, and ensures the schema exists.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            public_id TEXT UNIQUE NOT NULL,
            type TEXT NOT NULL,
            guest_name TEXT NOT NULL,
            phone TEXT,
            email TEXT,
            date TEXT NOT NULL,
            time TEXT NOT NULL,
            party_size INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            confirmation_code TEXT,
            cancel_reason TEXT,
            payment_status TEXT NOT NULL DEFAULT 'none',
            charge_id TEXT,
            prepayment_cents INTEGER NOT NULL DEFAULT 0,
            refund_percentage INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS settings (
            key TEXT PRIMARY KEY,
            payload TEXT NOT NULL,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date_type ON bookings(date, type)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// GetSettings returns the stored JSON payload for a settings key, or
// ErrNotFound when nothing has been stored yet (the caller then falls
// through to the env or default tier).
func (db *DB) GetSettings(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := db.QueryRowContext(ctx, `SELECT payload FROM settings WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", key, err)
	}
	return []byte(payload), nil
}

// UpsertSettings stores a validated JSON payload under a settings key.
func (db *DB) UpsertSettings(ctx context.Context, key string, payload []byte) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO settings (key, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(payload))
	if err != nil {
		return fmt.Errorf("failed to upsert settings %s: %w", key, err)
	}
	return nil
}
