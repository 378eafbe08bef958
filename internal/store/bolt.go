package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/shardsched/pkg/model"

	bolt "go.etcd.io/bbolt"
)

var (
	timingsBucket = []byte("test_timings")
	plansBucket   = []byte("shard_plans")
)

// BoltStore implements Store on a bbolt file. bbolt serializes read-write
// transactions, so each Update is the atomic unit for both mutations.
type BoltStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltStore opens (or creates) the bbolt database at path.
func NewBoltStore(path string, logger *slog.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &BoltStore{
		db:     db,
		logger: logger.With("component", "store", "backend", BackendBolt),
	}, nil
}

// Backend returns the backend name.
func (s *BoltStore) Backend() string { return BackendBolt }

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Migrate creates the buckets.
func (s *BoltStore) Migrate(ctx context.Context) error {
	s.logger.Debug("bolt", "op", "migrate")
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{timingsBucket, plansBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func bucket(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("bucket with name %s doesn't exist", name)
	}
	return b, nil
}

// --- Test timings ---

// RecordTiming reads, updates and writes the timing in one Update transaction.
func (s *BoltStore) RecordTiming(ctx context.Context, name string, seconds, alpha float64) (*model.TestTiming, error) {
	s.logger.Debug("bolt", "op", "update", "bucket", string(timingsBucket), "name", name)
	if err := ctx.Err(); err != nil {
		return nil, model.StorageError("update timing", err)
	}

	var t model.TestTiming
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, timingsBucket)
		if err != nil {
			return err
		}
		if raw := b.Get([]byte(name)); raw != nil {
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("unmarshal timing %s: %w", name, err)
			}
		} else {
			t = model.TestTiming{Name: name}
		}
		t.Observe(seconds, alpha, time.Now().UTC())

		raw, err := json.Marshal(&t)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), raw)
	})
	if err != nil {
		return nil, model.StorageError("update timing", err)
	}
	return &t, nil
}

// GetTiming returns the named test's timing, or nil if it has never been reported.
func (s *BoltStore) GetTiming(ctx context.Context, name string) (*model.TestTiming, error) {
	s.logger.Debug("bolt", "op", "get", "bucket", string(timingsBucket), "name", name)

	timings, err := s.GetTimings(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	return timings[name], nil
}

// GetTimings returns the timings that exist for names in one read transaction.
func (s *BoltStore) GetTimings(ctx context.Context, names []string) (map[string]*model.TestTiming, error) {
	s.logger.Debug("bolt", "op", "get_batch", "bucket", string(timingsBucket), "count", len(names))
	if err := ctx.Err(); err != nil {
		return nil, model.StorageError("view timings", err)
	}

	out := make(map[string]*model.TestTiming, len(names))
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, timingsBucket)
		if err != nil {
			return err
		}
		for _, name := range names {
			raw := b.Get([]byte(name))
			if raw == nil {
				continue
			}
			var t model.TestTiming
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("unmarshal timing %s: %w", name, err)
			}
			out[name] = &t
		}
		return nil
	})
	if err != nil {
		return nil, model.StorageError("view timings", err)
	}
	return out, nil
}

// --- Shard plans ---

// GetPlan returns the stored plan for key, or nil if none exists.
func (s *BoltStore) GetPlan(ctx context.Context, key model.PlanKey) (*model.ShardPlan, error) {
	s.logger.Debug("bolt", "op", "get", "bucket", string(plansBucket), "key", key.String())
	if err := ctx.Err(); err != nil {
		return nil, model.StorageError("view plan", err)
	}

	var plan *model.ShardPlan
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, plansBucket)
		if err != nil {
			return err
		}
		plan, err = decodePlan(b.Get([]byte(key.String())))
		return err
	})
	if err != nil {
		return nil, model.StorageError("view plan", err)
	}
	return plan, nil
}

// CreatePlanIfAbsent stores plan unless its key is taken, in one Update
// transaction. It returns the canonical plan and whether this call created it.
func (s *BoltStore) CreatePlanIfAbsent(ctx context.Context, plan *model.ShardPlan) (*model.ShardPlan, bool, error) {
	key := plan.Key()
	s.logger.Debug("bolt", "op", "put_if_absent", "bucket", string(plansBucket), "key", key.String())
	if err := ctx.Err(); err != nil {
		return nil, false, model.StorageError("update plan", err)
	}

	stored := plan
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, plansBucket)
		if err != nil {
			return err
		}
		existing, err := decodePlan(b.Get([]byte(key.String())))
		if err != nil {
			return err
		}
		if existing != nil {
			stored = existing
			return nil
		}
		raw, err := json.Marshal(plan)
		if err != nil {
			return err
		}
		created = true
		return b.Put([]byte(key.String()), raw)
	})
	if err != nil {
		return nil, false, model.StorageError("update plan", err)
	}
	return stored, created, nil
}

func decodePlan(raw []byte) (*model.ShardPlan, error) {
	if raw == nil {
		return nil, nil
	}
	var p model.ShardPlan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return &p, nil
}
