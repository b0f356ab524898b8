package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pharmatrace/trace-engine/pkg/metrics"
)

// Config holds PostgreSQL pool settings
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open connects and pings the database
func Open(ctx context.Context, config *Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	return db, nil
}

// Schema creates the tables used by the relational adapters
const Schema = `
CREATE TABLE IF NOT EXISTS batches (
    id           TEXT PRIMARY KEY,
    product_id   TEXT NOT NULL,
    batch_number TEXT NOT NULL,
    gtin         TEXT,
    qty          BIGINT NOT NULL DEFAULT 0 CHECK (qty >= 0),
    sent_qty     BIGINT NOT NULL DEFAULT 0,
    expires_at   TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (product_id, batch_number)
);

CREATE TABLE IF NOT EXISTS batch_numbers (
    product_id   TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    batch_number TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (product_id, user_id, batch_number)
);`

// Migrate applies Schema
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func observe(m *metrics.Metrics, table, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.RecordStoreOperation("postgres", table, op, err == nil, time.Since(start))
	return err
}
