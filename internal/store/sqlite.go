package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/shardsched/pkg/model"

	_ "modernc.org/sqlite"
)

// maxBatchVars bounds the number of placeholders in one IN (...) query.
const maxBatchVars = 500

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		// Concurrent writers wait on the file lock instead of failing with SQLITE_BUSY.
		dsn = dbPath + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store", "backend", BackendSQLite),
	}, nil
}

// Backend returns the backend name.
func (s *SQLiteStore) Backend() string { return BackendSQLite }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Test timings ---

// RecordTiming folds one duration sample into the named test's EWMA and
// bumps its run count. The read-modify-write is one UPSERT statement, so
// concurrent reports for the same name never lose an update. A missing row
// starts from ewma 0, so its first value is seconds*alpha.
func (s *SQLiteStore) RecordTiming(ctx context.Context, name string, seconds, alpha float64) (*model.TestTiming, error) {
	s.logger.Debug("sql", "op", "upsert", "table", "test_timings", "name", name)

	now := time.Now().UTC().Format(time.RFC3339Nano)

	var t model.TestTiming
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO test_timings (name, ewma_duration, run_count, updated_at)
		 VALUES (?, ? * ?, 1, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   ewma_duration = test_timings.ewma_duration * (1 - ?) + excluded.ewma_duration,
		   run_count     = test_timings.run_count + 1,
		   updated_at    = excluded.updated_at
		 RETURNING name, ewma_duration, run_count, updated_at`,
		name, seconds, alpha, now, alpha,
	).Scan(&t.Name, &t.EWMADuration, &t.RunCount, &updatedAt)
	if err != nil {
		return nil, model.StorageError("upsert timing", err)
	}
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &t, nil
}

// GetTiming returns the named test's timing, or nil if it has never been reported.
func (s *SQLiteStore) GetTiming(ctx context.Context, name string) (*model.TestTiming, error) {
	s.logger.Debug("sql", "op", "select", "table", "test_timings", "name", name)

	var t model.TestTiming
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, ewma_duration, run_count, updated_at FROM test_timings WHERE name = ?`, name,
	).Scan(&t.Name, &t.EWMADuration, &t.RunCount, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, model.StorageError("select timing", err)
	}
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &t, nil
}

// GetTimings returns the timings that exist for names, keyed by name.
// Names without a row are simply absent from the map.
func (s *SQLiteStore) GetTimings(ctx context.Context, names []string) (map[string]*model.TestTiming, error) {
	s.logger.Debug("sql", "op", "select_batch", "table", "test_timings", "count", len(names))

	out := make(map[string]*model.TestTiming, len(names))
	for start := 0; start < len(names); start += maxBatchVars {
		end := min(start+maxBatchVars, len(names))
		chunk := names[start:end]

		args := make([]any, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT name, ewma_duration, run_count, updated_at FROM test_timings
			 WHERE name IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, model.StorageError("select timings", err)
		}
		for rows.Next() {
			var t model.TestTiming
			var updatedAt string
			if err := rows.Scan(&t.Name, &t.EWMADuration, &t.RunCount, &updatedAt); err != nil {
				rows.Close()
				return nil, model.StorageError("scan timing", err)
			}
			t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
			out[t.Name] = &t
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, model.StorageError("select timings", err)
		}
	}
	return out, nil
}

// --- Shard plans ---

// GetPlan returns the stored plan for key, or nil if none exists.
func (s *SQLiteStore) GetPlan(ctx context.Context, key model.PlanKey) (*model.ShardPlan, error) {
	s.logger.Debug("sql", "op", "select", "table", "shard_plans", "key", key.String())

	var p model.ShardPlan
	var shardsJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, shard_count, shards, created_at FROM shard_plans
		 WHERE run_id = ? AND shard_count = ?`, key.RunID, key.ShardCount,
	).Scan(&p.RunID, &p.ShardCount, &shardsJSON, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, model.StorageError("select plan", err)
	}
	if err := json.Unmarshal([]byte(shardsJSON), &p.Shards); err != nil {
		return nil, model.StorageError("decode plan", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &p, nil
}

// CreatePlanIfAbsent inserts plan unless one already exists for its key.
// It returns the canonical stored plan and whether this call created it.
// A losing racer gets the winner's plan back; the insert never overwrites.
func (s *SQLiteStore) CreatePlanIfAbsent(ctx context.Context, plan *model.ShardPlan) (*model.ShardPlan, bool, error) {
	key := plan.Key()
	s.logger.Debug("sql", "op", "insert_if_absent", "table", "shard_plans", "key", key.String())

	shardsJSON, err := json.Marshal(plan.Shards)
	if err != nil {
		return nil, false, fmt.Errorf("marshal shards: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO shard_plans (run_id, shard_count, shards, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id, shard_count) DO NOTHING`,
		plan.RunID, plan.ShardCount, string(shardsJSON), plan.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, false, model.StorageError("insert plan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, model.StorageError("insert plan", err)
	}
	if n == 1 {
		return plan, true, nil
	}

	existing, err := s.GetPlan(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, model.StorageError("insert plan", fmt.Errorf("plan %s conflicted but is missing", key))
	}
	return existing, false, nil
}
