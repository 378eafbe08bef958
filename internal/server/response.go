package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/shardsched/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, apiErr)
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *model.APIError) {
	resp := model.Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}
	writeJSON(w, status, resp)
}

// writeJSON writes v without the envelope. The runner protocol routes use
// bare bodies.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Usually the client went away mid-response.
		slog.Debug("encode response", "status", status, "error", err)
	}
}

// respondErr maps a core error onto its HTTP status and envelope.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	reqID := RequestIDFromContext(r.Context())
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
	case errors.Is(err, model.ErrStorageUnavailable):
		s.logger.Error("storage unavailable", "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
			Code:    model.ErrStorage,
			Message: "storage unavailable, retry the request",
		})
	default:
		s.logger.Error("request failed", "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
			Code:    model.ErrInternal,
			Message: err.Error(),
		})
	}
}

// unescapeSegment decodes a path value taken from the raw (escaped) path.
// chi matches on RawPath when the request carried escapes such as %2F.
func unescapeSegment(r *http.Request, v string) (string, error) {
	if r.URL.RawPath == "" {
		return v, nil
	}
	out, err := url.PathUnescape(v)
	if err != nil {
		return "", model.InvalidArgumentf("malformed path segment %q", v)
	}
	return out, nil
}

// pathParam returns the decoded chi URL parameter key.
func pathParam(r *http.Request, key string) (string, error) {
	return unescapeSegment(r, chi.URLParam(r, key))
}

// intParam parses the chi URL parameter key as a base-10 integer.
func intParam(r *http.Request, key string) (int, error) {
	raw := chi.URLParam(r, key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.InvalidArgumentf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}
