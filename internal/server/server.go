// Package server exposes the console over a JSON REST API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/wesconsole/internal/config"
	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/internal/poller"
	"github.com/me/wesconsole/internal/store"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server is the console REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ConsoleConfig
	startTime time.Time
	console   *console.Console
	store     store.Store    // optional; snapshot saved after every mutation
	poller    *poller.Poller // optional; background refresh
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore persists a snapshot of the console after every mutating request.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithPoller sets the background refresher started by StartPoller.
func WithPoller(p *poller.Poller) Option {
	return func(s *Server) {
		s.poller = p
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ConsoleConfig, c *console.Console, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		console:   c,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// StartPoller begins background refresh in a goroutine.
func (s *Server) StartPoller(ctx context.Context) {
	if s.poller == nil {
		return
	}
	go func() {
		if err := s.poller.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("poller stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// persist saves a snapshot when a store is configured. Failures are logged;
// the in-memory state stays authoritative.
func (s *Server) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.console.Snapshot()); err != nil {
		s.logger.Error("persist snapshot", "error", err)
	}
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/services", func(r chi.Router) {
			r.Get("/", s.handleListServices)
			r.Post("/", s.handleCreateService)
			r.Post("/refresh", s.handleRefreshServices)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetService)
				r.Delete("/", s.handleDeleteService)
				r.Post("/refresh", s.handleRefreshService)
				r.Post("/runs/refresh", s.handleRefreshServiceRuns)
			})
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)
			r.Post("/import", s.handleImportWorkflow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
			})
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)
			r.Post("/refresh", s.handleRefreshRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Post("/refresh", s.handleRefreshRun)
				r.Post("/cancel", s.handleCancelRun)
			})
		})
	})
}
