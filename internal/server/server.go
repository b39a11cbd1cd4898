// Package server exposes descriptions, staleness, generation, and search over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/config"
	"github.com/hyperjump/codelod/internal/keyword"
	"github.com/hyperjump/codelod/internal/pipeline"
	"github.com/hyperjump/codelod/internal/storage"
)

// Runner regenerates descriptions for a set of files.
type Runner interface {
	Run(ctx context.Context, files []string, force bool) (pipeline.Stats, error)
}

// Searcher finds descriptions by text.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]*keyword.Result, error)
}

// Server is the HTTP server for a single project.
type Server struct {
	store     storage.Storage
	runner    Runner
	paths     config.Paths
	config    *config.ServerConfig
	logger    *zap.Logger
	searcher  Searcher
	suggester *keyword.Suggester
	keep      func(path string) bool
	server    *http.Server
}

// Option configures optional parts of a Server.
type Option func(*Server)

// WithSearch enables /api/v1/search. suggester may be nil.
func WithSearch(s Searcher, suggester *keyword.Suggester) Option {
	return func(srv *Server) {
		srv.searcher = s
		srv.suggester = suggester
	}
}

// WithFileFilter limits which files POST /api/v1/generate picks up from directories.
func WithFileFilter(keep func(path string) bool) Option {
	return func(srv *Server) {
		if keep != nil {
			srv.keep = keep
		}
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(store storage.Storage, runner Runner, paths config.Paths, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		runner: runner,
		paths:  paths,
		config: cfg,
		logger: logger,
		keep:   func(string) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stale", s.handleStale)
		r.Get("/descriptions/{hash}", s.handleGetDescription)
		r.Delete("/descriptions/{hash}", s.handleDeleteDescription)
		r.Get("/search", s.handleSearch)
		r.Post("/generate", s.handleGenerate)
	})
	return r
}

// requestLogger logs each request at debug level once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("root", s.paths.Root))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
