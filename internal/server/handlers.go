package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/generation"
	"github.com/hyperjump/kensaku/internal/ingest"
)

type createIndexRequest struct {
	Backend      string `json:"backend"`
	IndexName    string `json:"index_name"`
	EmbeddingDim int    `json:"embedding_dim"`
}

type ingestRequest struct {
	Backend   string               `json:"backend"`
	IndexName string               `json:"index_name"`
	CSVPath   string               `json:"csv_path"`
	Columns   ingest.ColumnMapping `json:"columns"`
}

type searchRequest struct {
	Backend   string `json:"backend"`
	IndexName string `json:"index_name"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	Category  string `json:"category"`
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IndexName == "" || req.EmbeddingDim <= 0 {
		s.respondError(w, http.StatusBadRequest, "index_name and a positive embedding_dim are required")
		return
	}
	adapter, ok := s.adapters[req.Backend]
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown backend: "+req.Backend)
		return
	}
	s.logger.Debug("create index request",
		zap.String("backend", req.Backend), zap.String("index", req.IndexName), zap.Int("dim", req.EmbeddingDim))
	if err := adapter.CreateIndex(r.Context(), req.IndexName, req.EmbeddingDim); err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":        true,
		"index":     req.IndexName,
		"backend":   req.Backend,
		"dimension": req.EmbeddingDim,
	})
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	backendTag := r.URL.Query().Get("backend")
	adapter, ok := s.adapters[backendTag]
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown backend: "+backendTag)
		return
	}
	s.logger.Debug("delete index request", zap.String("backend", backendTag), zap.String("index", name))
	if err := adapter.DeleteIndex(r.Context(), name); err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"index": name, "status": "deleted"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IndexName == "" || req.CSVPath == "" {
		s.respondError(w, http.StatusBadRequest, "index_name and csv_path are required")
		return
	}
	job, err := s.ingester.Schedule(r.Context(), ingest.Params{
		Backend:   req.Backend,
		IndexName: req.IndexName,
		CSVPath:   req.CSVPath,
		Columns:   req.Columns,
	})
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			s.respondBackendError(w, err)
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"scheduled": true,
		"job_id":    job.ID,
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.ingester.Jobs().Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" || req.IndexName == "" {
		s.respondError(w, http.StatusBadRequest, "index_name and query are required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.config.Search.DefaultTopK
	}
	if req.TopK > s.config.Search.MaxTopK {
		req.TopK = s.config.Search.MaxTopK
	}
	if _, ok := s.adapters[req.Backend]; !ok {
		s.respondError(w, http.StatusBadRequest, "unknown backend: "+req.Backend)
		return
	}
	s.logger.Debug("search request",
		zap.String("backend", req.Backend), zap.String("index", req.IndexName),
		zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	result, err := s.rag.Answer(r.Context(), req.Backend, req.IndexName, req.Query, req.TopK, req.Category)
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	backends := make([]string, 0, len(s.adapters))
	for tag := range s.adapters {
		backends = append(backends, tag)
	}
	descriptors, err := s.store.ListDescriptors(r.Context())
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	indices := make([]map[string]interface{}, 0, len(descriptors))
	for _, d := range descriptors {
		indices = append(indices, map[string]interface{}{
			"backend":     d.Backend,
			"index_name":  d.IndexName,
			"dimension":   d.Dimension,
			"num_vectors": d.NumVectors,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"backends": backends,
		"indices":  indices,
		"config": map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_max_words":      s.config.Chunking.MaxWords,
			"chunk_overlap":        s.config.Chunking.Overlap,
			"default_top_k":        s.config.Search.DefaultTopK,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondBackendError maps the error taxonomy onto HTTP statuses.
func (s *Server) respondBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backend.ErrAlreadyExists):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrDimensionMismatch):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, embedding.ErrService), errors.Is(err, generation.ErrService):
		s.logger.Error("external service failure", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
