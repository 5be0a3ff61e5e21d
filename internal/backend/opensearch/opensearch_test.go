package opensearch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/models"
)

// fakeCluster emulates the small slice of the OpenSearch REST API the adapter
// touches: index existence, creation, deletion, bulk indexing, and search.
type fakeCluster struct {
	mu      sync.Mutex
	indices map[string]bool
	docs    map[string][]map[string]any
	lastQ   map[string]any
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{indices: make(map[string]bool), docs: make(map[string][]map[string]any)}
}

func (f *fakeCluster) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		path := strings.Trim(r.URL.Path, "/")

		switch {
		case r.Method == http.MethodHead:
			if f.indices[path] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}

		case r.Method == http.MethodPut && !strings.Contains(path, "/"):
			f.indices[path] = true
			_ = json.NewEncoder(w).Encode(map[string]any{"acknowledged": true})

		case r.Method == http.MethodDelete:
			if !f.indices[path] {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "index_not_found_exception"})
				return
			}
			delete(f.indices, path)
			delete(f.docs, path)
			_ = json.NewEncoder(w).Encode(map[string]any{"acknowledged": true})

		case r.Method == http.MethodPost && path == "_bulk":
			scanner := bufio.NewScanner(r.Body)
			var index, id string
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var action struct {
					Index struct {
						Index string `json:"_index"`
						ID    string `json:"_id"`
					} `json:"index"`
				}
				if err := json.Unmarshal(line, &action); err == nil && action.Index.Index != "" {
					index, id = action.Index.Index, action.Index.ID
					continue
				}
				var source map[string]any
				_ = json.Unmarshal(line, &source)
				source["_id"] = id
				f.docs[index] = append(f.docs[index], source)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": false, "items": []any{}})

		case r.Method == http.MethodPost && strings.HasSuffix(path, "/_search"):
			index := strings.TrimSuffix(path, "/_search")
			var body struct {
				Size  int            `json:"size"`
				Query map[string]any `json:"query"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.lastQ = body.Query
			var hits []map[string]any
			for i, d := range f.docs[index] {
				if body.Size > 0 && i >= body.Size {
					break
				}
				hits = append(hits, map[string]any{
					"_id":     d["_id"],
					"_score":  1.0 - float64(i)*0.1,
					"_source": d,
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"hits": map[string]any{"hits": hits},
			})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeCluster, *metadata.MemoryStore) {
	t.Helper()
	fake := newFakeCluster()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	store := metadata.NewMemoryStore()
	a, err := NewAdapter(Config{Addresses: []string{srv.URL}}, store, nil)
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}
	return a, fake, store
}

func testChunk(id, category string, vec []float32) *models.Chunk {
	return &models.Chunk{
		ChunkID:     id,
		DocID:       "doc-" + id,
		Title:       "title " + id,
		Category:    category,
		Text:        "full text " + id,
		TextSnippet: "snippet " + id,
		Embedding:   vec,
	}
}

func TestOpenSearchCreateIndex(t *testing.T) {
	ctx := context.Background()
	a, fake, store := newTestAdapter(t)

	if err := a.CreateIndex(ctx, "docs", 4); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	if !fake.indices["docs"] {
		t.Error("index not created on the cluster")
	}
	if _, err := store.GetDescriptor(ctx, BackendName, "docs"); err != nil {
		t.Errorf("descriptor missing: %v", err)
	}

	if err := a.CreateIndex(ctx, "docs", 4); !errors.Is(err, backend.ErrAlreadyExists) {
		t.Errorf("second create: got %v, want ErrAlreadyExists", err)
	}
}

func TestOpenSearchUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	a, fake, store := newTestAdapter(t)
	_ = a.CreateIndex(ctx, "docs", 2)

	n, err := a.Upsert(ctx, "docs", []*models.Chunk{
		testChunk("c1", "go", []float32{1, 0}),
		testChunk("c2", "rust", []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Upsert returned %d, want 2", n)
	}
	if len(fake.docs["docs"]) != 2 {
		t.Errorf("cluster holds %d docs, want 2", len(fake.docs["docs"]))
	}
	desc, _ := store.GetDescriptor(ctx, BackendName, "docs")
	if desc.NumVectors != 2 {
		t.Errorf("NumVectors = %d, want 2", desc.NumVectors)
	}

	hits, err := a.Search(ctx, "docs", []float32{1, 0}, 2, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "c1" || hits[0].DocID != "doc-c1" || hits[0].TextSnippet != "snippet c1" {
		t.Errorf("source not mapped onto hit: %+v", hits[0])
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits not ordered by score: %f < %f", hits[0].Score, hits[1].Score)
	}
}

func TestOpenSearchCategoryFilterIsNative(t *testing.T) {
	ctx := context.Background()
	a, fake, _ := newTestAdapter(t)
	_ = a.CreateIndex(ctx, "docs", 2)

	if _, err := a.Search(ctx, "docs", []float32{1, 0}, 5, "go"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// The filter must be part of the query sent to the cluster, not applied
	// on the results afterwards.
	boolQ, ok := fake.lastQ["bool"].(map[string]any)
	if !ok {
		t.Fatalf("category search sent no bool query: %v", fake.lastQ)
	}
	if boolQ["filter"] == nil {
		t.Errorf("bool query has no filter clause: %v", boolQ)
	}

	if _, err := a.Search(ctx, "docs", []float32{1, 0}, 5, ""); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if _, ok := fake.lastQ["knn"]; !ok {
		t.Errorf("unfiltered search should send a plain knn query: %v", fake.lastQ)
	}
}

func TestOpenSearchUpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	a, fake, _ := newTestAdapter(t)
	_ = a.CreateIndex(ctx, "docs", 2)

	_, err := a.Upsert(ctx, "docs", []*models.Chunk{testChunk("bad", "", []float32{1, 0, 0})})
	if !errors.Is(err, backend.ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
	if len(fake.docs["docs"]) != 0 {
		t.Errorf("rejected upsert reached the cluster: %d docs", len(fake.docs["docs"]))
	}
}

func TestOpenSearchMissingIndex(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAdapter(t)

	if _, err := a.Upsert(ctx, "ghost", []*models.Chunk{testChunk("c1", "", []float32{1, 0})}); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Upsert: got %v, want ErrNotFound", err)
	}
	if _, err := a.Search(ctx, "ghost", []float32{1, 0}, 5, ""); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Search: got %v, want ErrNotFound", err)
	}
}

func TestOpenSearchDeleteIndex(t *testing.T) {
	ctx := context.Background()
	a, fake, store := newTestAdapter(t)
	_ = a.CreateIndex(ctx, "docs", 2)
	_, _ = a.Upsert(ctx, "docs", []*models.Chunk{testChunk("c1", "", []float32{1, 0})})

	if err := a.DeleteIndex(ctx, "docs"); err != nil {
		t.Fatalf("DeleteIndex failed: %v", err)
	}
	if fake.indices["docs"] {
		t.Error("index survived delete on the cluster")
	}
	if _, err := store.GetDescriptor(ctx, BackendName, "docs"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("descriptor survived delete: %v", err)
	}
	count, _ := store.CountChunks(ctx, BackendName, "docs")
	if count != 0 {
		t.Errorf("chunk records survived delete: %d", count)
	}
}
