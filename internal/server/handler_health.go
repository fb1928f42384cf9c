package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/wesconsole/internal/console"
)

type healthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	GoVersion string        `json:"go_version"`
	Uptime    string        `json:"uptime"`
	Poller    string        `json:"poller"`
	Store     string        `json:"store"`
	Counts    console.Stats `json:"counts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	poller, st := "disabled", "memory"
	if s.poller != nil {
		poller = s.config.PollSchedule
	}
	if s.store != nil {
		st = "sqlite"
	}
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Poller:    poller,
		Store:     st,
		Counts:    s.console.Stats(),
	})
}
