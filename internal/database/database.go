package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// DB wraps the archive database connection
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// New opens the archive database and brings its schema up to date
func New(dsn string, logger zerolog.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn:   conn,
		logger: logger.With().Str("component", "database").Logger(),
	}

	if err := db.createTables(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.migrateSchema(ctx)

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS periods (
			id BIGSERIAL PRIMARY KEY,
			period_start TIMESTAMPTZ NOT NULL,
			period_end TIMESTAMPTZ NOT NULL UNIQUE,
			trigger TEXT NOT NULL DEFAULT '',
			backup_key TEXT NOT NULL DEFAULT '',
			archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS period_activity_seconds (
			period_id BIGINT NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			activity_name TEXT NOT NULL,
			main_seconds BIGINT NOT NULL DEFAULT 0,
			duplicate_seconds BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (period_id, user_id, activity_name)
		)`,
		`CREATE TABLE IF NOT EXISTS period_voice_seconds (
			period_id BIGINT NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			total_seconds BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (period_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS activity_hours (
			user_id TEXT NOT NULL,
			activity_name TEXT NOT NULL,
			total_seconds BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, activity_name)
		)`,
		`CREATE TABLE IF NOT EXISTS voice_hours (
			user_id TEXT NOT NULL PRIMARY KEY,
			total_seconds BIGINT NOT NULL DEFAULT 0
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// migrateSchema applies additive changes to archives created by older builds.
// Failures are logged; most mean the change is already in place.
func (db *DB) migrateSchema(ctx context.Context) {
	migrations := []string{
		`ALTER TABLE periods ADD COLUMN IF NOT EXISTS backup_key TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE period_activity_seconds ADD COLUMN IF NOT EXISTS duplicate_seconds BIGINT NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS period_activity_user_idx ON period_activity_seconds (user_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.conn.ExecContext(ctx, migration); err != nil {
			db.logger.Warn().Err(err).Msg("Migration failed (this might be expected)")
		}
	}
}
