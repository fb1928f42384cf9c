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
		Name:        "WES Console API",
		Version:     "v1",
		Description: "Registry and run tracker for GA4GH Workflow Execution Service endpoints",
		Endpoints: []endpointInfo{
			{"/api/v1/services", []string{"GET", "POST"}, "Registered WES services"},
			{"/api/v1/services/refresh", []string{"POST"}, "Refresh every service and its catalog"},
			{"/api/v1/services/{id}", []string{"GET", "DELETE"}, "Single service; DELETE accepts ?force=true"},
			{"/api/v1/services/{id}/refresh", []string{"POST"}, "Refresh one service and reconcile its catalog"},
			{"/api/v1/services/{id}/runs/refresh", []string{"POST"}, "Refresh the state of every run of a service"},
			{"/api/v1/workflows", []string{"GET", "POST"}, "Workflows; GET accepts ?service_id="},
			{"/api/v1/workflows/import", []string{"POST"}, "Import a workflow from a TRS registry"},
			{"/api/v1/workflows/{id}", []string{"GET", "DELETE"}, "Single workflow with its parameters; DELETE accepts ?force=true"},
			{"/api/v1/runs", []string{"GET", "POST"}, "Runs; GET accepts ?service_id=, ?workflow_id=, ?state="},
			{"/api/v1/runs/refresh", []string{"POST"}, "Refresh the state of every run"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run with its log"},
			{"/api/v1/runs/{id}/refresh", []string{"POST"}, "Poll one run's status and log"},
			{"/api/v1/runs/{id}/cancel", []string{"POST"}, "Request cancellation of a run"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
