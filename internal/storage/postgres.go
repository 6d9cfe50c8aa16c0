// Package storage persists tender candidates and scan history in
// PostgreSQL. It implements the task manager's Store interface.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections.
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum connection lifetime.
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout is the default timeout for ping operations.
	DefaultPingTimeout = 5 * time.Second
)

// Config holds database connection settings.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// NewPostgresConnection opens and verifies a PostgreSQL connection.
func NewPostgresConnection(cfg Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// Schema is the minimum schema the engine needs. The host application owns
// the full relational model; these tables only back the pipeline.
const Schema = `
CREATE TABLE IF NOT EXISTS tender_candidates (
	content_hash    TEXT PRIMARY KEY,
	source_url      TEXT NOT NULL,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	tender_type     TEXT NOT NULL DEFAULT 'other',
	category        TEXT NOT NULL DEFAULT 'other',
	budget_amount   DOUBLE PRECISION,
	budget_currency TEXT NOT NULL DEFAULT '',
	publish_date    TEXT NOT NULL DEFAULT '',
	deadline_date   TEXT NOT NULL DEFAULT '',
	source_section  TEXT NOT NULL DEFAULT '',
	method          TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tender_candidates_source
	ON tender_candidates (source_url);

CREATE TABLE IF NOT EXISTS scan_history (
	id               BIGSERIAL PRIMARY KEY,
	task_id          TEXT NOT NULL,
	source_url       TEXT NOT NULL,
	score            INT NOT NULL,
	valid            BOOLEAN NOT NULL,
	candidates_found INT NOT NULL DEFAULT 0,
	new_records      INT NOT NULL DEFAULT 0,
	scanned_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_history_source
	ON scan_history (source_url, scanned_at DESC);
`

// EnsureSchema creates the engine's tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
