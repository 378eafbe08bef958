package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "shardsched API",
		Version:     "v1",
		Description: "Test shard scheduler: balances tests across shards using learned run times",
		Endpoints: []endpointInfo{
			{"/record/{test_name}/{runtime}", []string{"POST"}, "Report a test run time in seconds"},
			{"/schedule/{run_id}/{shard_count}/{shard_index}", []string{"POST"}, "Get the tests assigned to one shard of a run"},
			{"/api/v1/timings/{test_name}", []string{"GET"}, "Learned run time and planning weight of a test"},
			{"/api/v1/plans/{run_id}/{shard_count}", []string{"GET"}, "Stored shard plan of a run"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
