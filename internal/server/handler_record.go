package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/me/shardsched/pkg/model"
)

// handleRecord serves POST /record/{test_name}/{runtime}.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	name, runtime, err := splitRecordPath(r, chi.URLParam(r, "*"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	seconds, err := strconv.ParseFloat(runtime, 64)
	if err != nil {
		s.respondErr(w, r, model.InvalidArgumentf("runtime must be a number of seconds, got %q", runtime))
		return
	}

	if _, err := s.tracker.Report(r.Context(), name, seconds); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// splitRecordPath splits "<test_name>/<runtime>" on the last '/', decoding
// the test name.
func splitRecordPath(r *http.Request, rest string) (name, runtime string, err error) {
	idx := strings.LastIndex(rest, "/")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", model.InvalidArgumentf("expected /record/{test_name}/{runtime}")
	}
	name, err = unescapeSegment(r, rest[:idx])
	if err != nil {
		return "", "", err
	}
	return name, rest[idx+1:], nil
}
