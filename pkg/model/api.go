package model

import "time"

// Response is the standard API response envelope used under /api/v1 and for
// errors on every route.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error"`
}

// ScheduleRequest is the body of POST /schedule/{run_id}/{shard_count}/{shard_index}.
type ScheduleRequest struct {
	Tests []string `json:"tests"`
}

// ScheduleResponse lists the tests assigned to the requested shard.
type ScheduleResponse struct {
	Tests []string `json:"tests"`
}

// TimingView is the inspection form of a TestTiming, including the weight
// the planner would use for it.
type TimingView struct {
	Name         string  `json:"name"`
	EWMADuration float64 `json:"ewma_duration"`
	RunCount     int64   `json:"run_count"`
	Weight       float64 `json:"weight"`
}
