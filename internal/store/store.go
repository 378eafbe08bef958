package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/shardsched/pkg/model"
)

// Store defines the persistence layer for test timings and shard plans.
// Every mutation is a single atomic operation in the backend; callers never
// hold locks across these calls.
type Store interface {
	// Test timings
	RecordTiming(ctx context.Context, name string, seconds, alpha float64) (*model.TestTiming, error)
	GetTiming(ctx context.Context, name string) (*model.TestTiming, error)
	GetTimings(ctx context.Context, names []string) (map[string]*model.TestTiming, error)

	// Shard plans
	GetPlan(ctx context.Context, key model.PlanKey) (*model.ShardPlan, error)
	CreatePlanIfAbsent(ctx context.Context, plan *model.ShardPlan) (*model.ShardPlan, bool, error)

	// Lifecycle
	Backend() string
	Close() error
	Migrate(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Open opens the named backend at path.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteStore(path, logger)
	case BackendBolt:
		return NewBoltStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", backend, BackendSQLite, BackendBolt)
	}
}
