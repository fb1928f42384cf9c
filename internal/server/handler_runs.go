package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/pkg/model"
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	q := r.URL.Query()

	state := model.RunState(q.Get("state"))
	if state != "" && !state.Valid() {
		respondErr(w, reqID, model.NewValidationError("state", "unknown run state "+string(state)))
		return
	}
	respondOK(w, reqID, runViews(s.console.Runs(console.RunFilter{
		ServiceID:  q.Get("service_id"),
		WorkflowID: q.Get("workflow_id"),
		State:      state,
	})))
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req console.RunRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	run, err := s.console.ExecuteRun(r.Context(), req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.persist(r.Context())
	respondCreated(w, reqID, newRunView(run))
}

func (s *Server) handleRefreshRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.console.UpdateAllRunsState(r.Context())
	s.persist(r.Context())
	respondOK(w, reqID, runViews(s.console.Runs(console.RunFilter{})))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, ok := s.console.Run(id)
	if !ok {
		respondErr(w, reqID, model.NewIntegrityError("run", id))
		return
	}
	respondOK(w, reqID, newRunView(run))
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if len(s.console.DeleteRuns([]string{id})) == 0 {
		respondErr(w, reqID, model.NewIntegrityError("run", id))
		return
	}
	s.persist(r.Context())
	respondOK(w, reqID, map[string]any{"deleted": true, "id": id})
}

func (s *Server) handleRefreshRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	run, err := s.console.UpdateRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.persist(r.Context())
	respondOK(w, reqID, newRunView(run))
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sent, err := s.console.CancelRun(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "cancel_requested": sent})
}
