// Package server provides the HTTP API for browsing hive schemes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/hive/internal/config"
	"github.com/hyperjump/hive/internal/registry"
)

// WatchService reports the directories watched for scheme changes.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the hive API.
type Server struct {
	registry *registry.Registry
	config   *config.Config
	watch    WatchService
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server over reg. watch may be nil when watching is disabled.
func NewServer(reg *registry.Registry, cfg *config.Config, logger *zap.Logger, watch WatchService) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		registry: reg,
		config:   cfg,
		watch:    watch,
		logger:   logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectories)
		r.Get("/schemes", s.handleListSchemes)
		r.Route("/schemes/{name}", func(r chi.Router) {
			r.Post("/reload", s.handleReload)
			r.Group(func(r chi.Router) {
				r.Use(s.withScheme)
				r.Get("/", s.handleGetScheme)
				r.Get("/alpha", s.handleAlpha)
				r.Get("/top", s.handleTopConcepts)
				r.Get("/terms/{term}", s.handleLookup)
				r.Get("/search", s.handleSearch)
			})
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
