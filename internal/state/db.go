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

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
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

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pool_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			pair_id VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			mid_fee DECIMAL(38, 18) NOT NULL,
			out_fee DECIMAL(38, 18) NOT NULL,
			fee_gamma DECIMAL(38, 18) NOT NULL,
			repeg_profit_threshold DECIMAL(38, 18) NOT NULL,
			min_price_scale_delta DECIMAL(38, 18) NOT NULL,
			ma_half_time BIGINT NOT NULL,
			price_scale TEXT NOT NULL,
			CONSTRAINT uq_pool_parameters_pair_version UNIQUE (pair_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_pool_parameters_pair_active ON pool_parameters(pair_id, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS pool_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			pair_id VARCHAR(255) NOT NULL,
			taken_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			balance0 TEXT NOT NULL,
			balance1 TEXT NOT NULL,
			total_lp TEXT NOT NULL,
			price_state JSONB NOT NULL,
			amp_gamma JSONB NOT NULL,
			price0_cumulative TEXT NOT NULL,
			price1_cumulative TEXT NOT NULL,
			block_time_last BIGINT NOT NULL,
			last_ramp_start BIGINT NOT NULL DEFAULT 0,
			orderbook_balances JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_pool_snapshots_pair_taken ON pool_snapshots(pair_id, taken_at DESC);

		CREATE TABLE IF NOT EXISTS sync_receipts (
			receipt_id SERIAL PRIMARY KEY,
			sync_id VARCHAR(64) NOT NULL UNIQUE,
			pair_id VARCHAR(255) NOT NULL,
			sequence BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			had_trade BOOLEAN NOT NULL,
			offer_idx INTEGER,
			offer_amount TEXT,
			ask_amount TEXT,
			orders_placed INTEGER NOT NULL DEFAULT 0,
			intents JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_sync_receipts_pair_seq ON sync_receipts(pair_id, sequence DESC);
		CREATE INDEX IF NOT EXISTS idx_sync_receipts_created ON sync_receipts(created_at DESC);

		-- Sync counter table for persistent per-pair sequence tracking
		CREATE TABLE IF NOT EXISTS sync_counter (
			pair_id VARCHAR(255) PRIMARY KEY,
			current_sequence BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
