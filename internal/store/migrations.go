package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all scheduler tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS test_timings (
		name          TEXT PRIMARY KEY,
		ewma_duration REAL NOT NULL DEFAULT 0,
		run_count     INTEGER NOT NULL DEFAULT 0,
		updated_at    TEXT NOT NULL
	)`,

	// A plan is keyed by run and shard count only; the primary key is what
	// makes INSERT ... ON CONFLICT DO NOTHING a create-if-absent.
	`CREATE TABLE IF NOT EXISTS shard_plans (
		run_id      TEXT NOT NULL,
		shard_count INTEGER NOT NULL,
		shards      TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		PRIMARY KEY (run_id, shard_count)
	)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
