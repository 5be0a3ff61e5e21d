package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/backend/flat"
	"github.com/hyperjump/kensaku/internal/chunker"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/generation"
	"github.com/hyperjump/kensaku/internal/ingest"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/rag"
)

const testDim = 8

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := metadata.NewMemoryStore()
	adapter := flat.NewAdapter(store, 10, nil)
	adapters := map[string]backend.Adapter{adapter.Name(): adapter}

	embedder := embedding.NewMockEmbedder(testDim)
	generator := &generation.MockGenerator{}
	ch, err := chunker.New(20, 5)
	if err != nil {
		t.Fatalf("chunker.New failed: %v", err)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	ingester := ingest.NewService(adapters, store, embedder, ch, ingest.NewJobRegistry(), 4, 100, nil)
	ragSvc := rag.NewService(adapters, embedder, generator, 4, nil)
	srv := NewServer(adapters, ragSvc, ingester, store, cfg, zap.NewNop())
	return srv.Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func createIndex(t *testing.T, h http.Handler, name string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/indices", map[string]interface{}{
		"backend": "flat", "index_name": name, "embedding_dim": testDim,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create index: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCreateIndexEndpoint(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	// Duplicate name conflicts.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/indices", map[string]interface{}{
		"backend": "flat", "index_name": "docs", "embedding_dim": testDim,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create: status %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/indices", map[string]interface{}{
		"backend": "bogus", "index_name": "x", "embedding_dim": testDim,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown backend: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/indices", map[string]interface{}{
		"backend": "flat", "index_name": "x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing dimension: status %d, want 400", rec.Code)
	}
}

func TestDeleteIndexEndpoint(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	rec := doJSON(t, h, http.MethodDelete, "/api/v1/indices/docs?backend=flat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/indices/docs?backend=flat", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"backend": "flat", "index_name": "docs", "query": "anything",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["answer"] == "" {
		t.Error("search response has no answer")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"backend": "flat", "index_name": "ghost", "query": "anything",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing index: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"backend": "flat", "index_name": "docs",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing query: status %d, want 400", rec.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	path := filepath.Join(t.TempDir(), "docs.csv")
	content := "id,title,category,text\n" +
		"d1,First,go,Go is a compiled language with builtin concurrency primitives.\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"backend": "flat", "index_name": "docs", "csv_path": path,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest: status %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["scheduled"] != true {
		t.Errorf("response not marked scheduled: %v", out)
	}
	jobID, _ := out["job_id"].(string)
	if jobID == "" {
		t.Fatal("no job_id in response")
	}

	// Poll the status endpoint until the background job finishes.
	deadline := time.Now().Add(5 * time.Second)
	var state string
	for time.Now().Before(deadline) {
		rec = doJSON(t, h, http.MethodGet, "/api/v1/ingest/"+jobID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("job status: status %d, body %s", rec.Code, rec.Body.String())
		}
		state, _ = decode(t, rec)["state"].(string)
		if state == string(ingest.JobCompleted) || state == string(ingest.JobFailed) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if state != string(ingest.JobCompleted) {
		t.Fatalf("job state = %s, want completed", state)
	}

	// The ingested chunk is now searchable end to end.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"backend": "flat", "index_name": "docs", "query": "concurrency primitives",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("post-ingest search: status %d", rec.Code)
	}
	contexts, _ := decode(t, rec)["contexts"].([]interface{})
	if len(contexts) == 0 {
		t.Error("post-ingest search returned no contexts")
	}
}

func TestIngestEndpointValidation(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	// Missing index.
	path := filepath.Join(t.TempDir(), "docs.csv")
	if err := os.WriteFile(path, []byte("id,title,category,text\nd1,T,c,body\n"), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"backend": "flat", "index_name": "ghost", "csv_path": path,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing index: status %d, want 404", rec.Code)
	}

	// Missing file.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"backend": "flat", "index_name": "docs",
		"csv_path": filepath.Join(t.TempDir(), "absent.csv"),
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/ingest/no-such-job", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: status %d, want 404", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	out := decode(t, rec)
	backends, _ := out["backends"].([]interface{})
	found := false
	for _, b := range backends {
		if b == "flat" {
			found = true
		}
	}
	if !found {
		t.Errorf("flat backend missing from status: %v", out)
	}
	indices, _ := out["indices"].([]interface{})
	if len(indices) != 1 {
		t.Fatalf("expected 1 index in status, got %v", out["indices"])
	}
	idx, _ := indices[0].(map[string]interface{})
	if idx["index_name"] != "docs" || idx["num_vectors"] != float64(0) {
		t.Errorf("index summary = %v", idx)
	}
}

func TestTopKClamping(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"backend": "flat", "index_name": "docs", "query": "q", "top_k": 100000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d", rec.Code)
	}
	out := decode(t, rec)
	topK, _ := out["top_k"].(float64)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if int(topK) != cfg.Search.MaxTopK {
		t.Errorf("top_k = %v, want clamped to %d", topK, cfg.Search.MaxTopK)
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	h := newTestHandler(t)
	createIndex(t, h, "docs")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"backend": "flat", "index_name": "docs", "query": "plain query",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d", rec.Code)
	}
	out := decode(t, rec)
	topK, _ := out["top_k"].(float64)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if int(topK) != cfg.Search.DefaultTopK {
		t.Errorf("top_k = %v, want default %d", topK, cfg.Search.DefaultTopK)
	}
}
