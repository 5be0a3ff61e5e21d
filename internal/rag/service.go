// Package rag orchestrates retrieval-augmented answering: embed the query,
// search the selected backend, join metadata, and generate an answer.
package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/generation"
	"github.com/hyperjump/kensaku/internal/models"
)

// Service answers natural-language queries against a named index.
type Service struct {
	adapters  map[string]backend.Adapter
	embedder  embedding.Embedder
	generator generation.Generator
	batchSize int
	logger    *zap.Logger
}

// NewService creates an orchestrator over the given adapters.
func NewService(
	adapters map[string]backend.Adapter,
	embedder embedding.Embedder,
	generator generation.Generator,
	batchSize int,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		adapters:  adapters,
		embedder:  embedder,
		generator: generator,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Adapters returns the registered backend tags.
func (s *Service) Adapters() []string {
	tags := make([]string, 0, len(s.adapters))
	for tag := range s.adapters {
		tags = append(tags, tag)
	}
	return tags
}

// Answer embeds the query, searches the backend, and generates an answer
// from the retrieved contexts. Zero hits still invoke the generator with an
// empty context set; the result is never short-circuited with a canned
// answer. backend.ErrNotFound passes through when the index is absent.
func (s *Service) Answer(ctx context.Context, backendTag, indexName, query string, topK int, category string) (*models.RAGResult, error) {
	adapter, ok := s.adapters[backendTag]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", backendTag)
	}

	// The query goes through the same dispatcher as ingestion so the
	// normalization contract holds for the flat backend.
	dispatcher := embedding.NewDispatcher(s.embedder, s.batchSize, adapter.NormalizeVectors())
	vectors, err := dispatcher.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	hits, err := adapter.Search(ctx, indexName, vectors[0], topK, category)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []*models.SearchHit{}
	}
	s.logger.Debug("retrieved contexts",
		zap.String("backend", backendTag),
		zap.String("index", indexName),
		zap.Int("hits", len(hits)))

	answer, err := s.generator.Generate(ctx, query, hits)
	if err != nil {
		return nil, err
	}

	return &models.RAGResult{
		Query:    query,
		Answer:   answer,
		Contexts: hits,
		TopK:     topK,
		Backend:  adapter.Name(),
	}, nil
}
