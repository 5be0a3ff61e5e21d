// Package embedding provides text embedding via an external service and batch dispatch.
package embedding

import (
	"context"
	"errors"
)

// ErrService marks a failure of the external embedding service. Callers may
// retry; this package never retries on its own.
var ErrService = errors.New("embedding service error")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
