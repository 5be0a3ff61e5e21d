// Package server provides the HTTP API for kensaku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/ingest"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/rag"
)

// Server is the HTTP server for the kensaku API.
type Server struct {
	adapters map[string]backend.Adapter
	rag      *rag.Service
	ingester *ingest.Service
	store    metadata.Store
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	adapters map[string]backend.Adapter,
	ragSvc *rag.Service,
	ingester *ingest.Service,
	store metadata.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		adapters: adapters,
		rag:      ragSvc,
		ingester: ingester,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

// Routes builds the router. Exposed for handler tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/indices", s.handleCreateIndex)
	r.Delete("/api/v1/indices/{name}", s.handleDeleteIndex)
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Get("/api/v1/ingest/{id}", s.handleIngestStatus)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
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
