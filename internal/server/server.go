// Package server provides the HTTP API for the query planner.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/config"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/router"
)

// Planner produces query plans.
type Planner interface {
	Plan(ctx context.Context, query string, qctx *router.QueryContext) (*models.QueryPlan, error)
	ExtractEntities(ctx context.Context, query string) ([]models.Entity, map[string][]models.EntitySearchResult)
}

// LexiconService manages gazetteer sources at runtime.
type LexiconService interface {
	Size() int
	Sources() []string
	AddSource(path string) error
	RemoveSource(path string) (bool, error)
	Reload() error
}

// FileWatcher tracks source files for hot reload.
type FileWatcher interface {
	AddFile(path string) error
	RemoveFile(path string) error
}

// Server is the HTTP server for the planner API.
type Server struct {
	planner    Planner
	lexicon    LexiconService
	watch      FileWatcher
	backend    string
	cfg        *config.Config
	configPath string
	cfgMu      sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. lexicon and watch
// may be nil; configPath may be empty, in which case source changes are not
// persisted.
func NewServer(
	planner Planner,
	lexicon LexiconService,
	watch FileWatcher,
	backend string,
	cfg *config.Config,
	configPath string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		planner:    planner,
		lexicon:    lexicon,
		watch:      watch,
		backend:    backend,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/plan", s.handlePlan)
	r.Post("/api/v1/entities", s.handleEntities)
	r.Get("/api/v1/gazetteer", s.handleGazetteerStatus)
	r.Post("/api/v1/gazetteer/reload", s.handleGazetteerReload)
	r.Post("/api/v1/gazetteer/sources", s.handleGazetteerSourcesAdd)
	r.Delete("/api/v1/gazetteer/sources", s.handleGazetteerSourcesRemove)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("backend", s.backend))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
