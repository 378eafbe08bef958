package server

import (
	"net/http"

	"github.com/me/shardsched/pkg/model"
)

// handleGetPlan serves GET /api/v1/plans/{run_id}/{shard_count}.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

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

	plan, err := s.planner.Plan(r.Context(), runID, shardCount)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if plan == nil {
		key := model.PlanKey{RunID: runID, ShardCount: shardCount}
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("Plan", key.String()))
		return
	}
	respondOK(w, reqID, plan)
}
