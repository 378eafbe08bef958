// Package scheduler assigns a run's tests to shards and memoizes the result.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/shardsched/pkg/model"
)

// PlanStore is the subset of store.Store the planner needs.
type PlanStore interface {
	GetPlan(ctx context.Context, key model.PlanKey) (*model.ShardPlan, error)
	CreatePlanIfAbsent(ctx context.Context, plan *model.ShardPlan) (*model.ShardPlan, bool, error)
}

// WeightSource supplies planning weights for a batch of tests.
// Every requested name must be present in the result.
type WeightSource interface {
	Weights(ctx context.Context, names []string) (map[string]float64, error)
}

// Planner computes shard plans and keeps them immutable once stored.
//
// A plan is cached on (run id, shard count) only. A later request for the
// same key with a different test list gets the original plan back, so
// callers should use a run id per distinct test set.
type Planner struct {
	store   PlanStore
	weights WeightSource
	logger  *slog.Logger
	now     func() time.Time
}

// NewPlanner creates a Planner.
func NewPlanner(st PlanStore, weights WeightSource, logger *slog.Logger) *Planner {
	return &Planner{
		store:   st,
		weights: weights,
		logger:  logger.With("component", "scheduler"),
		now:     time.Now,
	}
}

// GetOrCreate returns the stored plan for (runID, shardCount), computing and
// storing one first if none exists. When several callers race on the same
// key, the first stored plan wins and every caller returns it.
func (p *Planner) GetOrCreate(ctx context.Context, runID string, shardCount int, names []string) (*model.ShardPlan, error) {
	key := model.PlanKey{RunID: runID, ShardCount: shardCount}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	existing, err := p.store.GetPlan(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.logger.Debug("plan cache hit", "key", key.String())
		return existing, nil
	}

	names = dedupe(names)
	weights, err := p.weights.Weights(ctx, names)
	if err != nil {
		return nil, err
	}

	plan := &model.ShardPlan{
		RunID:      runID,
		ShardCount: shardCount,
		Shards:     Balance(names, weights, shardCount),
		CreatedAt:  p.now().UTC(),
	}

	stored, created, err := p.store.CreatePlanIfAbsent(ctx, plan)
	if err != nil {
		return nil, err
	}
	if created {
		p.logger.Info("plan created", "key", key.String(), "tests", len(names), "shards", shardCount)
	} else {
		p.logger.Debug("plan discarded, concurrent create won", "key", key.String())
	}
	return stored, nil
}

// Plan returns the stored plan for (runID, shardCount), or nil if none exists.
func (p *Planner) Plan(ctx context.Context, runID string, shardCount int) (*model.ShardPlan, error) {
	key := model.PlanKey{RunID: runID, ShardCount: shardCount}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return p.store.GetPlan(ctx, key)
}

// Schedule returns the tests assigned to shardIndex. The index is checked
// before anything is read or written.
func (p *Planner) Schedule(ctx context.Context, runID string, shardCount, shardIndex int, names []string) ([]string, error) {
	key := model.PlanKey{RunID: runID, ShardCount: shardCount}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := model.CheckShardIndex(shardIndex, shardCount); err != nil {
		return nil, err
	}

	plan, err := p.GetOrCreate(ctx, runID, shardCount, names)
	if err != nil {
		return nil, err
	}
	return plan.Shard(shardIndex)
}
