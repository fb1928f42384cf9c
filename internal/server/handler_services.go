package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/pkg/model"
)

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, serviceViews(s.console.Services()))
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req console.ServiceRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	req.PreRegistered = false

	svc, err := s.console.SubmitService(r.Context(), req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.persist(r.Context())
	respondCreated(w, reqID, newServiceView(svc))
}

func (s *Server) handleRefreshServices(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.console.UpdateAllServices(r.Context())
	s.persist(r.Context())
	respondOK(w, reqID, serviceViews(s.console.Services()))
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	svc, ok := s.console.Service(id)
	if !ok {
		respondErr(w, reqID, model.NewIntegrityError("service", id))
		return
	}
	respondOK(w, reqID, newServiceView(svc))
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if _, ok := s.console.Service(id); !ok {
		respondErr(w, reqID, model.NewIntegrityError("service", id))
		return
	}
	if len(s.console.DeleteServices([]string{id}, forceParam(r))) == 0 {
		respondErr(w, reqID, model.NewValidationError("force", "service is pre-registered; pass force=true to delete it"))
		return
	}
	s.persist(r.Context())
	respondOK(w, reqID, map[string]any{"deleted": true, "id": id})
}

func (s *Server) handleRefreshService(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	svc, err := s.console.UpdateService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.persist(r.Context())
	respondOK(w, reqID, newServiceView(svc))
}

func (s *Server) handleRefreshServiceRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.console.UpdateAllRunsStateByService(r.Context(), id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.persist(r.Context())
	respondOK(w, reqID, runViews(s.console.Runs(console.RunFilter{ServiceID: id})))
}
