package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/pkg/model"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, workflowViews(s.console.Workflows(r.URL.Query().Get("service_id"))))
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req console.WorkflowRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	wf, err := s.console.SubmitWorkflow(r.Context(), req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.persist(r.Context())
	respondCreated(w, reqID, newWorkflowView(wf))
}

func (s *Server) handleImportWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req console.TRSImportRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	wf, err := s.console.ImportWorkflowFromTRS(r.Context(), req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.persist(r.Context())
	respondCreated(w, reqID, newWorkflowView(wf))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wf, ok := s.console.Workflow(id)
	if !ok {
		respondErr(w, reqID, model.NewIntegrityError("workflow", id))
		return
	}
	view := newWorkflowView(wf)
	params, err := s.console.WorkflowParameters(id)
	if err != nil {
		s.logger.Debug("workflow parameters unavailable", "workflow_id", id, "error", err)
	}
	view.Parameters = params
	respondOK(w, reqID, view)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if _, ok := s.console.Workflow(id); !ok {
		respondErr(w, reqID, model.NewIntegrityError("workflow", id))
		return
	}
	if len(s.console.DeleteWorkflows([]string{id}, forceParam(r))) == 0 {
		respondErr(w, reqID, model.NewValidationError("force", "workflow is pre-registered; pass force=true to delete it"))
		return
	}
	s.persist(r.Context())
	respondOK(w, reqID, map[string]any{"deleted": true, "id": id})
}
