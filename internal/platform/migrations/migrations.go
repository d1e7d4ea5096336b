// Package migrations creates the exchange layer's database schema. The
// statements are idempotent so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS exchange_pools (
		id            TEXT PRIMARY KEY,
		reserve_asset TEXT NOT NULL,
		admin         TEXT NOT NULL,
		initial_rate  NUMERIC(78,0) NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exchange_pools_reserve_asset
		ON exchange_pools (reserve_asset)`,
	`CREATE TABLE IF NOT EXISTS exchange_records (
		id         TEXT PRIMARY KEY,
		pool_id    TEXT NOT NULL REFERENCES exchange_pools (id),
		kind       TEXT NOT NULL,
		caller     TEXT NOT NULL,
		amount_in  NUMERIC(78,0) NOT NULL,
		amount_out NUMERIC(78,0) NOT NULL,
		rate       NUMERIC(78,0) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exchange_records_pool
		ON exchange_records (pool_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id         TEXT PRIMARY KEY,
		op         TEXT NOT NULL,
		actor      TEXT NOT NULL,
		pool_id    TEXT,
		params     JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_created_at
		ON audit_events (created_at)`,
}

// Apply executes all schema statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
