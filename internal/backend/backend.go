// Package backend defines the common contract shared by the three vector
// search backends and the error taxonomy surfaced to callers.
package backend

import (
	"context"

	"github.com/hyperjump/kensaku/internal/models"
)

// Adapter is the capability set every backend exposes. The set of backends
// is closed and known at build time: the distributed-index adapter
// (OpenSearch), the native-vector-store adapter (Qdrant), and the
// serialized-index adapter (flat index persisted as a blob).
type Adapter interface {
	// Name returns the backend tag reported in RAGResult.
	Name() string

	// NormalizeVectors reports whether this backend requires L2-normalized
	// vectors on both insertion and query. True only for the flat backend,
	// where inner product stands in for cosine similarity.
	NormalizeVectors() bool

	// CreateIndex creates a named index with a fixed embedding dimension.
	// Returns ErrAlreadyExists if the name is taken.
	CreateIndex(ctx context.Context, name string, dimension int) error

	// Upsert inserts chunks with their embeddings and returns the number
	// added. Returns ErrNotFound if the index does not exist and
	// ErrDimensionMismatch before any persistence write if a vector's
	// dimension disagrees with the index.
	Upsert(ctx context.Context, name string, chunks []*models.Chunk) (int, error)

	// Search returns up to topK hits ordered by descending score. When
	// category is non-empty only hits in that category are returned; how the
	// filter is applied (pre- or post-ranking) is backend-specific.
	Search(ctx context.Context, name string, vector []float32, topK int, category string) ([]*models.SearchHit, error)

	// DeleteIndex removes the named index and its chunks. Returns
	// ErrNotFound if the index does not exist.
	DeleteIndex(ctx context.Context, name string) error
}
