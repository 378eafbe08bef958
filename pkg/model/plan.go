package model

import (
	"fmt"
	"time"
)

// MaxShardCount bounds the shard count of a plan. Every shard is allocated
// and stored up front, so the count must stay small.
const MaxShardCount = 1024

// PlanKey identifies a ShardPlan. A plan is cached on the run and the shard
// count only, never on the test set it was computed from.
type PlanKey struct {
	RunID      string
	ShardCount int
}

// String renders the key as "<run_id>-<shard_count>". The count is all
// digits after the last '-', so the form is unambiguous.
func (k PlanKey) String() string {
	return fmt.Sprintf("%s-%d", k.RunID, k.ShardCount)
}

// Validate checks the key preconditions.
func (k PlanKey) Validate() error {
	if k.RunID == "" {
		return InvalidArgumentf("run id is required")
	}
	if k.ShardCount < 1 {
		return InvalidArgumentf("shard count must be >= 1, got %d", k.ShardCount)
	}
	if k.ShardCount > MaxShardCount {
		return InvalidArgumentf("shard count must be <= %d, got %d", MaxShardCount, k.ShardCount)
	}
	return nil
}

// ShardPlan is the persisted partition of a run's tests into shards.
// Once stored it is never mutated.
type ShardPlan struct {
	RunID      string     `json:"run_id"`
	ShardCount int        `json:"shard_count"`
	Shards     [][]string `json:"shards"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Key returns the plan's cache key.
func (p *ShardPlan) Key() PlanKey {
	return PlanKey{RunID: p.RunID, ShardCount: p.ShardCount}
}

// Shard returns the tests assigned to shard index i.
func (p *ShardPlan) Shard(i int) ([]string, error) {
	if err := CheckShardIndex(i, p.ShardCount); err != nil {
		return nil, err
	}
	if i >= len(p.Shards) {
		return []string{}, nil
	}
	return p.Shards[i], nil
}

// TestCount returns the number of tests across all shards.
func (p *ShardPlan) TestCount() int {
	n := 0
	for _, s := range p.Shards {
		n += len(s)
	}
	return n
}

// CheckShardIndex reports an invalid argument unless 0 <= index < shardCount.
func CheckShardIndex(index, shardCount int) error {
	if index < 0 || index >= shardCount {
		return InvalidArgumentf("shard index %d out of range [0, %d)", index, shardCount)
	}
	return nil
}
