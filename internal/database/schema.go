package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS product_nutrition (
		url          TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		upc          TEXT,
		brand        TEXT,
		price        TEXT,
		record       JSONB NOT NULL,
		scraped_at   TIMESTAMPTZ NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_nutrition_upc ON product_nutrition (upc)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id              UUID PRIMARY KEY,
		product_url     TEXT NOT NULL,
		event_type      TEXT NOT NULL,
		payload         JSONB NOT NULL,
		stream          TEXT NOT NULL,
		status          TEXT NOT NULL,
		attempts        INT NOT NULL DEFAULT 0,
		last_error      TEXT,
		created_at      TIMESTAMPTZ NOT NULL,
		next_attempt_at TIMESTAMPTZ NOT NULL,
		delivered_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_due ON outbox_event (status, next_attempt_at)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_product ON outbox_event (product_url)`,
}

// Migrate creates the tables the scraper writes to. It is safe to run on
// every start.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
