package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/shardsched/internal/timing"
	"github.com/me/shardsched/pkg/model"
)

// handleGetTiming serves GET /api/v1/timings/{test_name}. Tests that were
// never reported are returned with their default weight, not a 404.
func (s *Server) handleGetTiming(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	name, err := unescapeSegment(r, chi.URLParam(r, "*"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if name == "" {
		s.respondErr(w, r, model.InvalidArgumentf("test name is required"))
		return
	}

	rec, err := s.tracker.Timing(r.Context(), name)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	view := model.TimingView{Name: name, Weight: timing.DefaultWeight}
	if rec != nil {
		view.EWMADuration = rec.EWMADuration
		view.RunCount = rec.RunCount
		view.Weight = rec.EWMADuration
	}
	respondOK(w, reqID, view)
}
