// Package metadata defines the document store holding chunk metadata and
// index descriptors, independent of which backend holds the vectors.
package metadata

import (
	"context"
	"time"
)

// IndexDescriptor describes one index of one backend. NumVectors is a
// monotonically non-decreasing counter mutated only by successful ingestion.
// IndexBlob holds the serialized similarity structure and is used by the
// flat backend only; other backends leave it nil.
type IndexDescriptor struct {
	IndexName  string    `bson:"index_name" json:"index_name"`
	Backend    string    `bson:"backend" json:"backend"`
	Dimension  int       `bson:"dimension" json:"dimension"`
	NumVectors int64     `bson:"num_vectors" json:"num_vectors"`
	IndexBlob  []byte    `bson:"index_blob,omitempty" json:"-"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// ChunkRecord is the chunk-level metadata keyed by chunk id. Handle is the
// integer key the flat index uses for this chunk; it is derived, not stored
// as the source of truth, but recorded here for result-time lookup.
type ChunkRecord struct {
	ChunkID     string    `bson:"chunk_id" json:"chunk_id"`
	Handle      int64     `bson:"handle" json:"handle"`
	IndexName   string    `bson:"index_name" json:"index_name"`
	Backend     string    `bson:"backend" json:"backend"`
	DocID       string    `bson:"doc_id" json:"doc_id"`
	Title       string    `bson:"title" json:"title"`
	Category    string    `bson:"category" json:"category"`
	TextSnippet string    `bson:"text_snippet" json:"text_snippet"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Store is the metadata document store. It is the single source of truth for
// human-readable chunk fields across all backends. Descriptors are keyed by
// (backend, index name); chunks by chunk id.
type Store interface {
	// Descriptor operations. CreateDescriptor returns backend.ErrAlreadyExists
	// on a duplicate (backend, index name); Get/Replace/Delete return
	// backend.ErrNotFound when the descriptor is absent. ReplaceDescriptor is
	// an atomic whole-record replace: readers observe either the old or the
	// new record, never a mix.
	CreateDescriptor(ctx context.Context, desc *IndexDescriptor) error
	GetDescriptor(ctx context.Context, backendName, indexName string) (*IndexDescriptor, error)
	ListDescriptors(ctx context.Context) ([]*IndexDescriptor, error)
	ReplaceDescriptor(ctx context.Context, desc *IndexDescriptor) error
	DeleteDescriptor(ctx context.Context, backendName, indexName string) error

	// Chunk operations.
	InsertChunks(ctx context.Context, records []*ChunkRecord) error
	ChunkByHandle(ctx context.Context, backendName, indexName string, handle int64) (*ChunkRecord, error)
	DeleteChunks(ctx context.Context, backendName, indexName string) error
	CountChunks(ctx context.Context, backendName, indexName string) (int64, error)

	Close() error
}
