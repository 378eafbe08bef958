// Package timing learns per-test run times and turns them into planning weights.
package timing

import (
	"context"
	"log/slog"
	"math"

	"github.com/me/shardsched/pkg/model"
)

const (
	// Alpha is the EWMA smoothing factor. Higher values discount history faster.
	Alpha = 0.3

	// DefaultWeight is used for tests that have never been reported, so a new
	// suite is spread across shards instead of piling onto one.
	DefaultWeight = 1.0
)

// Store is the subset of store.Store the tracker needs.
type Store interface {
	RecordTiming(ctx context.Context, name string, seconds, alpha float64) (*model.TestTiming, error)
	GetTiming(ctx context.Context, name string) (*model.TestTiming, error)
	GetTimings(ctx context.Context, names []string) (map[string]*model.TestTiming, error)
}

// Tracker records run-time feedback and serves weights.
type Tracker struct {
	store  Store
	logger *slog.Logger
}

// NewTracker creates a Tracker over st.
func NewTracker(st Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  st,
		logger: logger.With("component", "timing"),
	}
}

// Report folds one observed duration into the test's EWMA.
// Unknown tests are created on first report.
func (t *Tracker) Report(ctx context.Context, name string, seconds float64) (*model.TestTiming, error) {
	if name == "" {
		return nil, model.InvalidArgumentf("test name is required")
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return nil, model.InvalidArgumentf("runtime must be a finite non-negative number of seconds, got %v", seconds)
	}

	rec, err := t.store.RecordTiming(ctx, name, seconds, Alpha)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("timing recorded", "test", name, "sample", seconds, "ewma", rec.EWMADuration, "runs", rec.RunCount)
	return rec, nil
}

// Timing returns the stored timing for name, or nil if it was never reported.
func (t *Tracker) Timing(ctx context.Context, name string) (*model.TestTiming, error) {
	return t.store.GetTiming(ctx, name)
}

// Weight returns the planning weight for one test.
func (t *Tracker) Weight(ctx context.Context, name string) (float64, error) {
	rec, err := t.store.GetTiming(ctx, name)
	if err != nil {
		return 0, err
	}
	return weightOf(rec), nil
}

// Weights returns planning weights for names with a single store round trip.
// Every requested name is present in the result.
func (t *Tracker) Weights(ctx context.Context, names []string) (map[string]float64, error) {
	timings, err := t.store.GetTimings(ctx, names)
	if err != nil {
		return nil, err
	}
	weights := make(map[string]float64, len(names))
	for _, name := range names {
		weights[name] = weightOf(timings[name])
	}
	t.logger.Debug("weights loaded", "requested", len(names), "known", len(timings))
	return weights, nil
}

func weightOf(rec *model.TestTiming) float64 {
	if rec == nil {
		return DefaultWeight
	}
	return rec.EWMADuration
}
