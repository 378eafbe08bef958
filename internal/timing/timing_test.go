package timing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/me/shardsched/internal/store"
	"github.com/me/shardsched/pkg/model"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewTracker(st, logger)
}

// countingStore counts batch lookups.
type countingStore struct {
	Store
	batches int
}

func (c *countingStore) GetTimings(ctx context.Context, names []string) (map[string]*model.TestTiming, error) {
	c.batches++
	return c.Store.GetTimings(ctx, names)
}

func TestReport_EWMA(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	samples := []float64{12.5, 3, 60, 0.25}
	want := 0.0
	var rec *model.TestTiming
	var err error
	for _, s := range samples {
		rec, err = tr.Report(ctx, "200_dns_test.sh", s)
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		want = want*(1-Alpha) + s*Alpha
	}
	if math.Abs(rec.EWMADuration-want) > 1e-9 {
		t.Errorf("ewma = %v, want %v", rec.EWMADuration, want)
	}
	if rec.RunCount != int64(len(samples)) {
		t.Errorf("run_count = %d, want %d", rec.RunCount, len(samples))
	}

	w, err := tr.Weight(ctx, "200_dns_test.sh")
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	if w != rec.EWMADuration {
		t.Errorf("weight = %v, want %v", w, rec.EWMADuration)
	}
}

func TestReport_InvalidRuntime(t *testing.T) {
	tr := testTracker(t)
	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := tr.Report(context.Background(), "a", v)
		if !errors.Is(err, model.ErrInvalidArgument) {
			t.Errorf("Report(%v) error = %v, want ErrInvalidArgument", v, err)
		}
	}
	if _, err := tr.Report(context.Background(), "", 1); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("empty name error = %v, want ErrInvalidArgument", err)
	}

	rec, err := tr.Timing(context.Background(), "a")
	if err != nil {
		t.Fatalf("timing: %v", err)
	}
	if rec != nil {
		t.Errorf("rejected reports must not create a row, got %+v", rec)
	}
}

func TestWeight_UnknownDefaults(t *testing.T) {
	tr := testTracker(t)
	w, err := tr.Weight(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	if w != DefaultWeight {
		t.Errorf("weight = %v, want %v", w, DefaultWeight)
	}
}

func TestWeights_SingleBatch(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()
	if _, err := tr.Report(ctx, "slow", 100); err != nil {
		t.Fatalf("report: %v", err)
	}

	cs := &countingStore{Store: tr.store}
	tr.store = cs

	got, err := tr.Weights(ctx, []string{"slow", "new-1", "new-2"})
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	if cs.batches != 1 {
		t.Errorf("batch lookups = %d, want 1", cs.batches)
	}
	if math.Abs(got["slow"]-30) > 1e-9 {
		t.Errorf("slow = %v, want 30", got["slow"])
	}
	if got["new-1"] != DefaultWeight || got["new-2"] != DefaultWeight {
		t.Errorf("unseen weights = %v, %v, want %v", got["new-1"], got["new-2"], DefaultWeight)
	}
}

func TestWeights_ZeroRuntimeIsNotDefaulted(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()
	if _, err := tr.Report(ctx, "instant", 0); err != nil {
		t.Fatalf("report: %v", err)
	}
	got, err := tr.Weights(ctx, []string{"instant"})
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	if got["instant"] != 0 {
		t.Errorf("weight = %v, want 0", got["instant"])
	}
}
