// Package httpserver provides the HTTP API for starting harvests, polling
// their progress and downloading exports.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/disease-literature-harvester/internal/database"
	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/harvest"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
	"github.com/helixir/disease-literature-harvester/internal/repository"
)

// RunService starts and tracks background harvests. *harvest.Manager implements it.
type RunService interface {
	StartHarvest(ctx context.Context, req harvest.Request) (string, error)
	Status(runID string) (harvest.RunState, error)
	List() []harvest.RunState
	Corpus(runID string) (*domain.Corpus, error)
	Cancel(runID string) error
}

// RunStore reads persisted runs. *repository.PgCorpusRepository implements it.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*domain.RunMetadata, error)
	LoadCorpus(ctx context.Context, runID string) (*domain.Corpus, error)
	ListRuns(ctx context.Context, filter repository.RunFilter) ([]repository.RunSummary, int64, error)
}

// HealthChecker reports database health. *database.DB implements it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// SourceLister lists the registered literature sources. *papersources.Registry implements it.
type SourceLister interface {
	All() []papersources.Adapter
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	runs       RunService
	store      RunStore
	db         HealthChecker
	sources    SourceLister
	metrics    string
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath exposes Prometheus metrics when non-empty.
	MetricsPath string
}

// Deps are the server's collaborators. Only Runs is required.
type Deps struct {
	Runs    RunService
	Store   RunStore
	DB      HealthChecker
	Sources SourceLister
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		runs:    deps.Runs,
		store:   deps.Store,
		db:      deps.DB,
		sources: deps.Sources,
		metrics: cfg.MetricsPath,
		logger:  logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	if s.metrics != "" {
		r.Handle(s.metrics, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/harvests", s.startHarvest)
		r.Get("/harvests", s.listHarvests)
		r.Get("/harvests/{runID}", s.getHarvestStatus)
		r.Delete("/harvests/{runID}", s.cancelHarvest)
		r.Get("/harvests/{runID}/export", s.exportHarvest)
		r.Get("/harvests/{runID}/summary", s.getHarvestSummary)

		r.Get("/runs", s.listStoredRuns)

		r.Get("/diseases", s.listDiseases)
		r.Get("/sources", s.listSources)
	})

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including database connectivity
// when persistence is enabled.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "database": "disabled"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
