package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/me/shardsched/pkg/model"
)

// handleSchedule serves POST /schedule/{run_id}/{shard_count}/{shard_index}.
// The body is {"tests": [...]}; the response lists the tests of shard_index.
// Content-Type is not checked; runners post bare JSON.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	runID, err := pathParam(r, "runID")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	shardCount, err := intParam(r, "shardCount")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	shardIndex, err := intParam(r, "shardIndex")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	var req model.ScheduleRequest
	body := http.MaxBytesReader(w, r.Body, maxScheduleBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondErr(w, r, model.InvalidArgumentf("invalid JSON body: %v", err))
		return
	}

	tests, err := s.planner.Schedule(r.Context(), runID, shardCount, shardIndex, req.Tests)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if tests == nil {
		tests = []string{}
	}
	writeJSON(w, http.StatusOK, model.ScheduleResponse{Tests: tests})
}
