// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	var err error
	DB, err = sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err := DB.Ping(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Connected to PostgreSQL")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// Amounts are NUMERIC(78, 0): wide enough for any 256-bit integer.
const schemaSQL = `
	CREATE TABLE IF NOT EXISTS vault_parameters (
		params_id SERIAL PRIMARY KEY,
		config_name VARCHAR(255) NOT NULL DEFAULT 'default',
		version INTEGER NOT NULL DEFAULT 1,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		idle_reserve_target NUMERIC(78, 0) NOT NULL,
		deposit_cap NUMERIC(78, 0) NOT NULL,
		rebalance_threshold_bps INTEGER NOT NULL,
		max_rebalance_bps_per_cycle INTEGER NOT NULL,
		min_action_amount NUMERIC(78, 0) NOT NULL,
		default_max_slippage_bps INTEGER NOT NULL,
		CONSTRAINT uq_vault_parameters_config_version UNIQUE (config_name, version)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_parameters_config_active ON vault_parameters(config_name, is_active, activated_at DESC);

	CREATE TABLE IF NOT EXISTS vault_events (
		event_id UUID PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		event_timestamp TIMESTAMPTZ NOT NULL,
		strategy_id VARCHAR(255),
		account VARCHAR(255),
		amounts JSONB,
		shares NUMERIC(78, 0),
		message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_events_type ON vault_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_vault_events_strategy ON vault_events(strategy_id);

	CREATE TABLE IF NOT EXISTS cycle_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		cycle_id UUID NOT NULL,
		snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		params_id INTEGER REFERENCES vault_parameters(params_id),

		-- Pre-Action State
		initial_total_assets NUMERIC(78, 0) NOT NULL,
		initial_idle NUMERIC(78, 0) NOT NULL,
		initial_strategies JSONB,

		-- The Outcome
		harvested NUMERIC(78, 0) NOT NULL,
		rebalance JSONB,
		final_total_assets NUMERIC(78, 0) NOT NULL,
		final_idle NUMERIC(78, 0) NOT NULL,
		final_total_shares NUMERIC(78, 0) NOT NULL,
		final_strategies JSONB,
		event_ids TEXT[],
		errors TEXT[]
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC);
` + cycleCounterSQL

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrNoDatabase
	}
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured")
	return nil
}

// ResetSchema drops every table this package owns. Used by the migrate command with --reset.
func ResetSchema() error {
	if DB == nil {
		return ErrNoDatabase
	}
	dropSQL := `
		DROP TABLE IF EXISTS cycle_snapshots CASCADE;
		DROP TABLE IF EXISTS vault_events CASCADE;
		DROP TABLE IF EXISTS vault_parameters CASCADE;
		DROP TABLE IF EXISTS cycle_counter CASCADE;
	`
	if _, err := DB.Exec(dropSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Warn().Msg("Database tables dropped")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return ErrNoDatabase
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
