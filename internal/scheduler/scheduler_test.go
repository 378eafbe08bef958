package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/me/shardsched/internal/store"
	"github.com/me/shardsched/internal/timing"
	"github.com/me/shardsched/pkg/model"
	"golang.org/x/sync/errgroup"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingStore records how many plans were actually persisted and how many
// were computed.
type countingStore struct {
	store.Store
	created  atomic.Int32
	attempts atomic.Int32
}

func (c *countingStore) CreatePlanIfAbsent(ctx context.Context, plan *model.ShardPlan) (*model.ShardPlan, bool, error) {
	c.attempts.Add(1)
	got, created, err := c.Store.CreatePlanIfAbsent(ctx, plan)
	if created {
		c.created.Add(1)
	}
	return got, created, err
}

type fixture struct {
	store   *countingStore
	tracker *timing.Tracker
	planner *Planner
}

func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cs := &countingStore{Store: st}
	tr := timing.NewTracker(cs, quietLogger())
	return &fixture{
		store:   cs,
		tracker: tr,
		planner: NewPlanner(cs, tr, quietLogger()),
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run(store.BackendSQLite, func(t *testing.T) {
		st, err := store.NewSQLiteStore(":memory:", quietLogger())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		fn(t, newFixture(t, st))
	})
	t.Run(store.BackendBolt, func(t *testing.T) {
		st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "plans.db"), quietLogger())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		fn(t, newFixture(t, st))
	})
}

func (f *fixture) report(t *testing.T, name string, seconds float64) {
	t.Helper()
	if _, err := f.tracker.Report(context.Background(), name, seconds); err != nil {
		t.Fatalf("report %s: %v", name, err)
	}
}

func TestGetOrCreate_UsesLearnedWeights(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// A single report sets ewma = 0.3 * sample.
		f.report(t, "t10", 100/3.0)
		f.report(t, "t9", 30)
		f.report(t, "t8", 80/3.0)
		f.report(t, "t7", 70/3.0)

		plan, err := f.planner.GetOrCreate(context.Background(), "run-1", 2, []string{"t7", "t8", "t9", "t10"})
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		want := [][]string{{"t10", "t7"}, {"t9", "t8"}}
		if !reflect.DeepEqual(plan.Shards, want) {
			t.Errorf("shards = %v, want %v", plan.Shards, want)
		}
	})
}

func TestGetOrCreate_UnknownTestsWeighOne(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// "fast" has a learned weight below 1, so the two unseen tests
		// (weight 1) are placed first.
		f.report(t, "fast", 1)

		plan, err := f.planner.GetOrCreate(context.Background(), "run", 2, []string{"fast", "new-a", "new-b"})
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		want := [][]string{{"new-a", "fast"}, {"new-b"}}
		if !reflect.DeepEqual(plan.Shards, want) {
			t.Errorf("shards = %v, want %v", plan.Shards, want)
		}
	})
}

func TestGetOrCreate_CacheFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		first, err := f.planner.GetOrCreate(ctx, "run-7", 3, []string{"a", "b", "c", "d"})
		if err != nil {
			t.Fatalf("first: %v", err)
		}

		// New feedback and a different test list must not change the plan.
		f.report(t, "d", 500)
		second, err := f.planner.GetOrCreate(ctx, "run-7", 3, []string{"x", "y"})
		if err != nil {
			t.Fatalf("second: %v", err)
		}
		if !reflect.DeepEqual(first.Shards, second.Shards) {
			t.Errorf("plan changed: first %v, second %v", first.Shards, second.Shards)
		}
		if n := f.store.created.Load(); n != 1 {
			t.Errorf("plans created = %d, want 1", n)
		}
	})
}

func TestGetOrCreate_EmptyInput(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		plan, err := f.planner.GetOrCreate(context.Background(), "empty", 4, nil)
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if len(plan.Shards) != 4 || plan.TestCount() != 0 {
			t.Errorf("shards = %v, want 4 empty shards", plan.Shards)
		}
	})
}

func TestGetOrCreate_DuplicateNames(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		plan, err := f.planner.GetOrCreate(context.Background(), "dup", 2, []string{"a", "b", "a", "a"})
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if plan.TestCount() != 2 {
			t.Errorf("test count = %d, want 2: %v", plan.TestCount(), plan.Shards)
		}
	})
}

func TestGetOrCreate_InvalidArguments(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		cases := []struct {
			run    string
			shards int
		}{
			{"run", 0},
			{"run", -1},
			{"", 2},
		}
		for _, c := range cases {
			_, err := f.planner.GetOrCreate(ctx, c.run, c.shards, []string{"a"})
			if !errors.Is(err, model.ErrInvalidArgument) {
				t.Errorf("GetOrCreate(%q, %d) error = %v, want ErrInvalidArgument", c.run, c.shards, err)
			}
		}
		if n := f.store.attempts.Load(); n != 0 {
			t.Errorf("create attempts = %d, want 0", n)
		}
	})
}

func TestGetOrCreate_ConcurrentSameKey(t *testing.T) {
	const n = 24
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		var (
			mu    sync.Mutex
			plans [][][]string
		)
		var g errgroup.Group
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				names := []string{fmt.Sprintf("only-%d", i), "shared-a", "shared-b"}
				plan, err := f.planner.GetOrCreate(ctx, "race", 2, names)
				if err != nil {
					return err
				}
				mu.Lock()
				plans = append(plans, plan.Shards)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("get or create: %v", err)
		}

		for i, p := range plans {
			if !reflect.DeepEqual(p, plans[0]) {
				t.Errorf("caller %d got %v, want %v", i, p, plans[0])
			}
		}
		if c := f.store.created.Load(); c != 1 {
			t.Errorf("plans persisted = %d, want exactly 1", c)
		}

		stored, err := f.planner.Plan(ctx, "race", 2)
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		if !reflect.DeepEqual(stored.Shards, plans[0]) {
			t.Errorf("stored plan %v differs from returned %v", stored.Shards, plans[0])
		}
	})
}

func TestSchedule_ReturnsRequestedShard(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		names := []string{"a", "b", "c"}

		var all []string
		for idx := 0; idx < 2; idx++ {
			got, err := f.planner.Schedule(ctx, "run", 2, idx, names)
			if err != nil {
				t.Fatalf("schedule %d: %v", idx, err)
			}
			all = append(all, got...)
		}
		if len(all) != 3 {
			t.Errorf("union of shards = %v, want 3 tests", all)
		}
	})
}

func TestSchedule_OutOfRangeIndex(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		for _, idx := range []int{-1, 3, 10} {
			_, err := f.planner.Schedule(ctx, "run", 3, idx, []string{"a"})
			if !errors.Is(err, model.ErrInvalidArgument) {
				t.Errorf("Schedule(index %d) error = %v, want ErrInvalidArgument", idx, err)
			}
		}
		plan, err := f.planner.Plan(ctx, "run", 3)
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		if plan != nil {
			t.Errorf("rejected request must not create a plan, got %+v", plan)
		}
	})
}

func TestPlan_Absent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		plan, err := f.planner.Plan(context.Background(), "nothing", 2)
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		if plan != nil {
			t.Errorf("plan = %+v, want nil", plan)
		}
	})
}
