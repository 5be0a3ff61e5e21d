// Package opensearch implements the distributed-index backend on an
// OpenSearch cluster with native k-NN vector search. Vectors, payload, and
// filtering are handled by the cluster; this adapter is a pass-through plus
// descriptor and metadata bookkeeping.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	opensearchclient "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/models"
)

// BackendName is the tag this adapter reports in results.
const BackendName = "opensearch"

// Adapter implements backend.Adapter against an OpenSearch cluster.
type Adapter struct {
	client *opensearchclient.Client
	store  metadata.Store
	logger *zap.Logger
}

// Config holds connection settings for the cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
}

// NewAdapter connects to the cluster and returns an adapter.
func NewAdapter(cfg Config, store metadata.Store, logger *zap.Logger) (*Adapter, error) {
	client, err := opensearchclient.NewClient(opensearchclient.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, store: store, logger: logger}, nil
}

// Name returns the backend tag.
func (a *Adapter) Name() string { return BackendName }

// NormalizeVectors is false: the cluster ranks in its own vector space.
func (a *Adapter) NormalizeVectors() bool { return false }

// indexMapping is the knn_vector HNSW mapping used for every index.
const indexMapping = `{
  "settings": {
    "index": {
      "knn": true,
      "knn.algo_param.ef_search": 100
    }
  },
  "mappings": {
    "properties": {
      "doc_id": {"type": "keyword"},
      "chunk_id": {"type": "keyword"},
      "title": {"type": "text"},
      "category": {"type": "keyword"},
      "text": {"type": "text"},
      "text_snippet": {"type": "text"},
      "embedding": {
        "type": "knn_vector",
        "dimension": %d,
        "method": {
          "name": "hnsw",
          "space_type": "l2",
          "engine": "faiss",
          "parameters": {"ef_construction": 128, "m": 24}
        }
      },
      "created_at": {"type": "date"}
    }
  }
}`

// CreateIndex creates the index with a k-NN mapping and records a descriptor.
func (a *Adapter) CreateIndex(ctx context.Context, name string, dimension int) error {
	exists, err := a.indexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return backend.ErrAlreadyExists
	}
	res, err := opensearchapi.IndicesCreateRequest{
		Index: name,
		Body:  strings.NewReader(fmt.Sprintf(indexMapping, dimension)),
	}.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("create opensearch index %q: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create opensearch index %q: %s", name, res.Status())
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
	a.logger.Info("created opensearch index", zap.String("index", name), zap.Int("dimension", dimension))
	return nil
}

// Upsert bulk-indexes chunks with their embeddings, then mirrors chunk
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
			return 0, fmt.Errorf("%w: chunk %s has dimension %d, index %q expects %d",
				backend.ErrDimensionMismatch, c.ChunkID, len(c.Embedding), name, desc.Dimension)
		}
	}

	now := time.Now().UTC()
	var buf bytes.Buffer
	records := make([]*metadata.ChunkRecord, len(chunks))
	for i, c := range chunks {
		action := map[string]any{"index": map[string]any{"_index": name, "_id": c.ChunkID}}
		source := map[string]any{
			"doc_id":       c.DocID,
			"chunk_id":     c.ChunkID,
			"title":        c.Title,
			"category":     c.Category,
			"text":         c.Text,
			"text_snippet": c.TextSnippet,
			"embedding":    c.Embedding,
			"created_at":   now.Format(time.RFC3339),
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return 0, err
		}
		if err := json.NewEncoder(&buf).Encode(source); err != nil {
			return 0, err
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
	res, err := opensearchapi.BulkRequest{Body: &buf, Refresh: "true"}.Do(ctx, a.client)
	if err != nil {
		return 0, fmt.Errorf("bulk index into %q: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("bulk index into %q: %s", name, res.Status())
	}
	if err := a.store.InsertChunks(ctx, records); err != nil {
		return 0, fmt.Errorf("persist chunk metadata for %q: %w", name, err)
	}
	desc.NumVectors += int64(len(chunks))
	desc.UpdatedAt = now
	if err := a.store.ReplaceDescriptor(ctx, desc); err != nil {
		return 0, fmt.Errorf("update descriptor for %q: %w", name, err)
	}
	a.logger.Info("bulk indexed into opensearch",
		zap.String("index", name), zap.Int("added", len(chunks)))
	return len(chunks), nil
}

type osSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				DocID       string `json:"doc_id"`
				ChunkID     string `json:"chunk_id"`
				Title       string `json:"title"`
				Category    string `json:"category"`
				TextSnippet string `json:"text_snippet"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a native k-NN query; when a category is set it is applied as a
// term filter inside the query, restricting candidates before ranking.
func (a *Adapter) Search(ctx context.Context, name string, vector []float32, topK int, category string) ([]*models.SearchHit, error) {
	if _, err := a.store.GetDescriptor(ctx, BackendName, name); err != nil {
		return nil, err
	}
	knn := map[string]any{
		"knn": map[string]any{
			"embedding": map[string]any{"vector": vector, "k": topK},
		},
	}
	var query map[string]any
	if category != "" {
		query = map[string]any{
			"bool": map[string]any{
				"must":   []any{knn},
				"filter": []any{map[string]any{"term": map[string]any{"category": category}}},
			},
		}
	} else {
		query = knn
	}
	body := map[string]any{
		"size":    topK,
		"query":   query,
		"_source": []string{"doc_id", "chunk_id", "title", "category", "text_snippet"},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	res, err := opensearchapi.SearchRequest{
		Index: []string{name},
		Body:  bytes.NewReader(data),
	}.Do(ctx, a.client)
	if err != nil {
		return nil, fmt.Errorf("search opensearch index %q: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search opensearch index %q: %s", name, res.Status())
	}
	var out osSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]*models.SearchHit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, &models.SearchHit{
			ChunkID:     h.ID,
			DocID:       h.Source.DocID,
			Title:       h.Source.Title,
			Category:    h.Source.Category,
			TextSnippet: h.Source.TextSnippet,
			Score:       h.Score,
		})
	}
	return hits, nil
}

// DeleteIndex drops the index and its mirrored metadata.
func (a *Adapter) DeleteIndex(ctx context.Context, name string) error {
	if err := a.store.DeleteDescriptor(ctx, BackendName, name); err != nil {
		return err
	}
	res, err := opensearchapi.IndicesDeleteRequest{Index: []string{name}}.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("delete opensearch index %q: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete opensearch index %q: %s", name, res.Status())
	}
	if err := a.store.DeleteChunks(ctx, BackendName, name); err != nil {
		return fmt.Errorf("delete chunks for %q: %w", name, err)
	}
	a.logger.Info("deleted opensearch index", zap.String("index", name))
	return nil
}

func (a *Adapter) indexExists(ctx context.Context, name string) (bool, error) {
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, a.client)
	if err != nil {
		return false, fmt.Errorf("check opensearch index %q: %w", name, err)
	}
	defer res.Body.Close()
	return res.StatusCode == 200, nil
}
