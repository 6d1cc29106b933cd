// Package server exposes the job service over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/raphaelgruber/nutristat/internal/models"
	"github.com/raphaelgruber/nutristat/internal/service"
)

// Jobs is the part of the job service the HTTP layer depends on.
type Jobs interface {
	Submit(ctx context.Context, op models.Operation, params models.Params) (models.JobID, error)
	Status(ctx context.Context, id models.JobID) (service.JobState, error)
	CountRunning(ctx context.Context) (int, error)
	ListJobs(ctx context.Context) ([]service.JobState, error)
	StopAccepting()
	Stats() service.Stats
	Subscribe(buffer int) (<-chan service.Event, func())
}

// Server routes HTTP requests to the job service.
type Server struct {
	jobs   Jobs
	logger *slog.Logger
	router chi.Router
}

// New creates a server with all routes registered.
func New(jobs Jobs, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		jobs:   jobs,
		logger: logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		for _, op := range models.Operations() {
			api.Post("/"+string(op), s.handleSubmit(op))
		}

		api.Get("/get_results/{job_id}", s.handleGetResult)
		api.Get("/num_jobs", s.handleNumJobs)
		api.Get("/jobs", s.handleJobs)
		api.Get("/graceful_shutdown", s.handleShutdown)
		api.Post("/post_endpoint", s.handleEcho)

		api.Get("/stats", s.handleStats)
		api.Get("/ws", s.handleEvents)
	})

	return r
}
