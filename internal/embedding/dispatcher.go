package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kensaku/pkg/utils"
)

// Dispatcher partitions texts into contiguous fixed-size batches and obtains
// embeddings one batch at a time, preserving input order. Any batch failure
// fails the whole call; nothing partial is returned.
//
// When normalize is set, every output vector is L2-normalized. The serialized
// flat backend requires this: on unit vectors inner product equals cosine
// similarity, so normalization is part of this dispatcher's output contract
// for that backend.
type Dispatcher struct {
	embedder  Embedder
	batchSize int
	normalize bool
}

// NewDispatcher creates a dispatcher over the given embedder.
func NewDispatcher(embedder Embedder, batchSize int, normalize bool) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Dispatcher{embedder: embedder, batchSize: batchSize, normalize: normalize}
}

// EmbedTexts returns one vector per input text, in input order.
func (d *Dispatcher) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += d.batchSize {
		end := i + d.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]
		vecs, err := d.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d: %v", ErrService, i/d.batchSize, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("%w: batch %d returned %d vectors for %d texts",
				ErrService, i/d.batchSize, len(vecs), len(batch))
		}
		vectors = append(vectors, vecs...)
	}
	if d.normalize {
		for _, v := range vectors {
			utils.NormalizeL2(v)
		}
	}
	return vectors, nil
}
