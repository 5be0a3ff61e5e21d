package flat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/models"
)

// BackendName is the tag this adapter reports in results.
const BackendName = "flat"

// Adapter implements backend.Adapter on a flat index whose only durable form
// is the serialized blob inside its IndexDescriptor record. Every operation
// is load -> apply -> persist; mutations hold the per-index exclusive lock
// across all three steps.
type Adapter struct {
	store metadata.Store
	locks *lockRegistry
	// candidateMultiplier widens the raw k-NN request when a category filter
	// will discard hits after ranking.
	candidateMultiplier int
	logger              *zap.Logger
}

// NewAdapter creates a flat adapter over the given metadata store.
func NewAdapter(store metadata.Store, candidateMultiplier int, logger *zap.Logger) *Adapter {
	if candidateMultiplier <= 0 {
		candidateMultiplier = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		store:               store,
		locks:               newLockRegistry(),
		candidateMultiplier: candidateMultiplier,
		logger:              logger,
	}
}

// Name returns the backend tag.
func (a *Adapter) Name() string { return BackendName }

// NormalizeVectors is true: inner product over unit vectors is cosine.
func (a *Adapter) NormalizeVectors() bool { return true }

// CreateIndex stores an empty serialized index under the given name.
func (a *Adapter) CreateIndex(ctx context.Context, name string, dimension int) error {
	lock := a.locks.get(name)
	lock.Lock()
	defer lock.Unlock()

	idx, err := newFlatIndex(dimension)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	desc := &metadata.IndexDescriptor{
		IndexName: name,
		Backend:   BackendName,
		Dimension: dimension,
		IndexBlob: idx.serialize(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateDescriptor(ctx, desc); err != nil {
		return err
	}
	a.logger.Info("created flat index", zap.String("index", name), zap.Int("dimension", dimension))
	return nil
}

// Upsert inserts chunks into the index and persists the updated blob, then
// the chunk metadata. On a metadata write failure the previous descriptor is
// restored so readers observe no partial state.
func (a *Adapter) Upsert(ctx context.Context, name string, chunks []*models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	lock := a.locks.get(name)
	lock.Lock()
	defer lock.Unlock()

	prev, err := a.store.GetDescriptor(ctx, BackendName, name)
	if err != nil {
		return 0, err
	}
	idx, err := deserializeIndex(prev.IndexBlob)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q: %v", backend.ErrIndexCorrupt, name, err)
	}

	// Reject dimension problems before touching anything durable.
	for _, c := range chunks {
		if len(c.Embedding) != prev.Dimension {
			return 0, fmt.Errorf("%w: chunk %s has dimension %d, index %q expects %d",
				backend.ErrDimensionMismatch, c.ChunkID, len(c.Embedding), name, prev.Dimension)
		}
	}

	handles := make([]int64, len(chunks))
	vectors := make([][]float32, len(chunks))
	records := make([]*metadata.ChunkRecord, len(chunks))
	now := time.Now().UTC()
	for i, c := range chunks {
		handles[i] = Handle(c.ChunkID)
		vectors[i] = c.Embedding
		records[i] = &metadata.ChunkRecord{
			ChunkID:     c.ChunkID,
			Handle:      handles[i],
			IndexName:   name,
			Backend:     BackendName,
			DocID:       c.DocID,
			Title:       c.Title,
			Category:    c.Category,
			TextSnippet: c.TextSnippet,
			CreatedAt:   now,
		}
	}

	if err := idx.add(handles, vectors); err != nil {
		return 0, err
	}

	next := *prev
	next.IndexBlob = idx.serialize()
	next.NumVectors = int64(idx.size())
	next.UpdatedAt = now
	if err := a.store.ReplaceDescriptor(ctx, &next); err != nil {
		return 0, fmt.Errorf("persist index %q: %w", name, err)
	}
	if err := a.store.InsertChunks(ctx, records); err != nil {
		// Metadata failed after the blob was persisted: put the previous
		// descriptor back so the upsert is all-or-nothing for readers.
		if restoreErr := a.store.ReplaceDescriptor(ctx, prev); restoreErr != nil {
			a.logger.Error("failed to restore descriptor after metadata write failure",
				zap.String("index", name), zap.Error(restoreErr))
		}
		return 0, fmt.Errorf("persist chunk metadata for %q: %w", name, err)
	}

	a.logger.Info("upserted into flat index",
		zap.String("index", name), zap.Int("added", len(chunks)), zap.Int64("num_vectors", next.NumVectors))
	return len(chunks), nil
}

// Search loads the blob, runs k-NN, resolves handles through the metadata
// store, and post-filters by category after ranking. Post-filtering is the
// documented trade-off of this backend: the effective number of hits after
// filtering may be less than topK even though topK candidates were ranked.
func (a *Adapter) Search(ctx context.Context, name string, vector []float32, topK int, category string) ([]*models.SearchHit, error) {
	lock := a.locks.get(name)
	lock.RLock()
	defer lock.RUnlock()

	desc, err := a.store.GetDescriptor(ctx, BackendName, name)
	if err != nil {
		return nil, err
	}
	idx, err := deserializeIndex(desc.IndexBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: index %q: %v", backend.ErrIndexCorrupt, name, err)
	}
	if len(vector) != desc.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index %q expects %d",
			backend.ErrDimensionMismatch, len(vector), name, desc.Dimension)
	}

	searchK := topK
	if category != "" {
		searchK = topK * a.candidateMultiplier
	}
	if searchK > idx.size() {
		searchK = idx.size()
	}
	candidates, err := idx.search(vector, searchK)
	if err != nil {
		return nil, err
	}

	hits := make([]*models.SearchHit, 0, topK)
	for _, cand := range candidates {
		rec, err := a.store.ChunkByHandle(ctx, BackendName, name, cand.handle)
		if err != nil {
			a.logger.Warn("no metadata for handle, skipping",
				zap.String("index", name), zap.Int64("handle", cand.handle))
			continue
		}
		if category != "" && rec.Category != category {
			continue
		}
		hits = append(hits, &models.SearchHit{
			ChunkID:     rec.ChunkID,
			DocID:       rec.DocID,
			Title:       rec.Title,
			Category:    rec.Category,
			TextSnippet: rec.TextSnippet,
			Score:       cand.score,
		})
		if len(hits) >= topK {
			break
		}
	}
	return hits, nil
}

// DeleteIndex removes the descriptor and all chunk metadata.
func (a *Adapter) DeleteIndex(ctx context.Context, name string) error {
	lock := a.locks.get(name)
	lock.Lock()
	defer lock.Unlock()

	if err := a.store.DeleteDescriptor(ctx, BackendName, name); err != nil {
		return err
	}
	if err := a.store.DeleteChunks(ctx, BackendName, name); err != nil {
		return fmt.Errorf("delete chunks for %q: %w", name, err)
	}
	a.logger.Info("deleted flat index", zap.String("index", name))
	return nil
}
