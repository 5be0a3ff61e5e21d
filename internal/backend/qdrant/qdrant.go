// Package qdrant implements the native-vector-store backend on Qdrant's REST
// API. Vectors and payload live in Qdrant; chunk metadata and the index
// descriptor are mirrored into the metadata store.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/models"
)

// BackendName is the tag this adapter reports in results.
const BackendName = "qdrant"

// Adapter implements backend.Adapter against a Qdrant server.
type Adapter struct {
	url    string
	apiKey string
	client *http.Client
	store  metadata.Store
	logger *zap.Logger
}

// Config holds connection settings for the Qdrant server.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NewAdapter creates a Qdrant adapter.
func NewAdapter(cfg Config, store metadata.Store, logger *zap.Logger) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		store:  store,
		logger: logger,
	}
}

// Name returns the backend tag.
func (a *Adapter) Name() string { return BackendName }

// NormalizeVectors is false: Qdrant computes cosine distance natively.
func (a *Adapter) NormalizeVectors() bool { return false }

// CreateIndex creates a cosine-distance collection and records a descriptor.
func (a *Adapter) CreateIndex(ctx context.Context, name string, dimension int) error {
	if _, err := a.store.GetDescriptor(ctx, BackendName, name); err == nil {
		return backend.ErrAlreadyExists
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := a.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", a.url, name), body, nil); err != nil {
		return fmt.Errorf("create qdrant collection %q: %w", name, err)
	}
	now := time.Now().UTC()
	desc := &metadata.IndexDescriptor{
		IndexName: name,
		Backend:   BackendName,
		Dimension: dimension,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateDescriptor(ctx, desc); err != nil {
		return err
	}
	a.logger.Info("created qdrant collection", zap.String("collection", name), zap.Int("dimension", dimension))
	return nil
}

// Upsert writes points with payload into the collection, then mirrors chunk
// metadata and bumps the descriptor counter.
func (a *Adapter) Upsert(ctx context.Context, name string, chunks []*models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	desc, err := a.store.GetDescriptor(ctx, BackendName, name)
	if err != nil {
		return 0, err
	}
	for _, c := range chunks {
		if len(c.Embedding) != desc.Dimension {
			return 0, fmt.Errorf("%w: chunk %s has dimension %d, collection %q expects %d",
				backend.ErrDimensionMismatch, c.ChunkID, len(c.Embedding), name, desc.Dimension)
		}
	}

	points := make([]map[string]any, len(chunks))
	records := make([]*metadata.ChunkRecord, len(chunks))
	now := time.Now().UTC()
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     c.ChunkID,
			"vector": c.Embedding,
			"payload": map[string]any{
				"doc_id":       c.DocID,
				"title":        c.Title,
				"category":     c.Category,
				"text_snippet": c.TextSnippet,
			},
		}
		records[i] = &metadata.ChunkRecord{
			ChunkID:     c.ChunkID,
			IndexName:   name,
			Backend:     BackendName,
			DocID:       c.DocID,
			Title:       c.Title,
			Category:    c.Category,
			TextSnippet: c.TextSnippet,
			CreatedAt:   now,
		}
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", a.url, name)
	if err := a.do(ctx, http.MethodPut, url, map[string]any{"points": points}, nil); err != nil {
		return 0, fmt.Errorf("upsert into qdrant collection %q: %w", name, err)
	}
	if err := a.store.InsertChunks(ctx, records); err != nil {
		return 0, fmt.Errorf("persist chunk metadata for %q: %w", name, err)
	}
	desc.NumVectors += int64(len(chunks))
	desc.UpdatedAt = now
	if err := a.store.ReplaceDescriptor(ctx, desc); err != nil {
		return 0, fmt.Errorf("update descriptor for %q: %w", name, err)
	}
	a.logger.Info("upserted into qdrant collection",
		zap.String("collection", name), zap.Int("added", len(chunks)))
	return len(chunks), nil
}

type searchResponse struct {
	Result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search runs vector search with native payload pre-filtering: when a
// category is set Qdrant restricts candidates before ranking, so the result
// count is only limited by how many chunks match.
func (a *Adapter) Search(ctx context.Context, name string, vector []float32, topK int, category string) ([]*models.SearchHit, error) {
	if _, err := a.store.GetDescriptor(ctx, BackendName, name); err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if category != "" {
		body["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "category", "match": map[string]any{"value": category}},
			},
		}
	}
	var resp searchResponse
	url := fmt.Sprintf("%s/collections/%s/points/search", a.url, name)
	if err := a.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, fmt.Errorf("search qdrant collection %q: %w", name, err)
	}
	hits := make([]*models.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := &models.SearchHit{ChunkID: r.ID, Score: r.Score}
		if v, ok := r.Payload["doc_id"].(string); ok {
			hit.DocID = v
		}
		if v, ok := r.Payload["title"].(string); ok {
			hit.Title = v
		}
		if v, ok := r.Payload["category"].(string); ok {
			hit.Category = v
		}
		if v, ok := r.Payload["text_snippet"].(string); ok {
			hit.TextSnippet = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteIndex drops the collection and its mirrored metadata.
func (a *Adapter) DeleteIndex(ctx context.Context, name string) error {
	if err := a.store.DeleteDescriptor(ctx, BackendName, name); err != nil {
		return err
	}
	if err := a.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", a.url, name), nil, nil); err != nil {
		return fmt.Errorf("delete qdrant collection %q: %w", name, err)
	}
	if err := a.store.DeleteChunks(ctx, BackendName, name); err != nil {
		return fmt.Errorf("delete chunks for %q: %w", name, err)
	}
	a.logger.Info("deleted qdrant collection", zap.String("collection", name))
	return nil
}

// do issues a JSON request and decodes the response into out when non-nil.
func (a *Adapter) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("api-key", a.apiKey)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
