// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package database provides the DuckDB-backed booking history store. The
// forecasting core treats it as a read-only historical-record source; writes
// happen only through bulk ingestion, which callers must follow with a cache
// invalidation.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/harborcast/harborcast/internal/config"
	"github.com/harborcast/harborcast/internal/logging"
)

// defaultQueryTimeout bounds queries whose caller context has no deadline.
const defaultQueryTimeout = 30 * time.Second

// DB wraps the DuckDB connection and provides booking data access.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database file and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable extension auto-install/auto-load to avoid hangs in restricted
	// network environments; nothing here needs extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// DuckDB is embedded; a single writer connection avoids lock contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("database opened")

	return db, nil
}

// initialize creates the schema if it does not exist.
func (db *DB) initialize() error {
	schema := `
	CREATE SEQUENCE IF NOT EXISTS bookings_id_seq;

	CREATE TABLE IF NOT EXISTS bookings (
		id               BIGINT PRIMARY KEY DEFAULT nextval('bookings_id_seq'),
		booking_date     DATE NOT NULL,
		origin_port      VARCHAR NOT NULL,
		destination_port VARCHAR,
		container_type   VARCHAR NOT NULL,
		quantity         INTEGER NOT NULL,
		customer         VARCHAR,
		status           VARCHAR,
		created_at       TIMESTAMP DEFAULT current_timestamp
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings (booking_date);
	CREATE INDEX IF NOT EXISTS idx_bookings_port_type ON bookings (origin_port, container_type);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// ensureContext returns a context with a deadline, adding the default query
// timeout when the caller provided none.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Ping verifies the connection is alive. Used by readiness probes.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
