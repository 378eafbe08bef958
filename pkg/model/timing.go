package model

import "time"

// TestTiming is the learned run time of one test.
// EWMADuration only ever moves through NextEWMA.
type TestTiming struct {
	Name         string    `json:"name"`
	EWMADuration float64   `json:"ewma_duration"`
	RunCount     int64     `json:"run_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NextEWMA folds one sample into an exponentially weighted moving average.
func NextEWMA(prev, sample, alpha float64) float64 {
	return prev*(1-alpha) + sample*alpha
}

// Observe applies a sample to the timing in place.
func (t *TestTiming) Observe(sample, alpha float64, now time.Time) {
	t.EWMADuration = NextEWMA(t.EWMADuration, sample, alpha)
	t.RunCount++
	t.UpdatedAt = now
}
