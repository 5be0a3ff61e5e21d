package metadata

import (
	"context"
	"sync"

	"github.com/hyperjump/kensaku/internal/backend"
)

// MemoryStore is an in-memory Store for tests. It mirrors the semantics of
// the Mongo and SQLite stores, including atomic descriptor replacement.
type MemoryStore struct {
	mu          sync.RWMutex
	descriptors map[string]*IndexDescriptor
	chunks      map[string][]*ChunkRecord

	// FailInsertChunks makes the next InsertChunks call fail; tests use it to
	// exercise the flat adapter's rollback path.
	FailInsertChunks error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		descriptors: make(map[string]*IndexDescriptor),
		chunks:      make(map[string][]*ChunkRecord),
	}
}

func key(backendName, indexName string) string {
	return backendName + "/" + indexName
}

// CreateDescriptor inserts a descriptor, failing on a duplicate name.
func (s *MemoryStore) CreateDescriptor(ctx context.Context, desc *IndexDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(desc.Backend, desc.IndexName)
	if _, ok := s.descriptors[k]; ok {
		return backend.ErrAlreadyExists
	}
	cp := *desc
	s.descriptors[k] = &cp
	return nil
}

// GetDescriptor returns a copy of the descriptor for (backendName, indexName).
func (s *MemoryStore) GetDescriptor(ctx context.Context, backendName, indexName string) (*IndexDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	desc, ok := s.descriptors[key(backendName, indexName)]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *desc
	cp.IndexBlob = append([]byte(nil), desc.IndexBlob...)
	return &cp, nil
}

// ListDescriptors returns copies of all descriptors across backends.
func (s *MemoryStore) ListDescriptors(ctx context.Context) ([]*IndexDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*IndexDescriptor, 0, len(s.descriptors))
	for _, desc := range s.descriptors {
		cp := *desc
		cp.IndexBlob = append([]byte(nil), desc.IndexBlob...)
		out = append(out, &cp)
	}
	return out, nil
}

// ReplaceDescriptor atomically replaces the whole descriptor record.
func (s *MemoryStore) ReplaceDescriptor(ctx context.Context, desc *IndexDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(desc.Backend, desc.IndexName)
	if _, ok := s.descriptors[k]; !ok {
		return backend.ErrNotFound
	}
	cp := *desc
	cp.IndexBlob = append([]byte(nil), desc.IndexBlob...)
	s.descriptors[k] = &cp
	return nil
}

// DeleteDescriptor removes the descriptor for (backendName, indexName).
func (s *MemoryStore) DeleteDescriptor(ctx context.Context, backendName, indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(backendName, indexName)
	if _, ok := s.descriptors[k]; !ok {
		return backend.ErrNotFound
	}
	delete(s.descriptors, k)
	return nil
}

// InsertChunks batch-inserts chunk records, all or nothing.
func (s *MemoryStore) InsertChunks(ctx context.Context, records []*ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertChunks != nil {
		err := s.FailInsertChunks
		s.FailInsertChunks = nil
		return err
	}
	for _, r := range records {
		k := key(r.Backend, r.IndexName)
		cp := *r
		s.chunks[k] = append(s.chunks[k], &cp)
	}
	return nil
}

// ChunkByHandle returns the chunk record with the given integer handle.
func (s *MemoryStore) ChunkByHandle(ctx context.Context, backendName, indexName string, handle int64) (*ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.chunks[key(backendName, indexName)] {
		if r.Handle == handle {
			cp := *r
			return &cp, nil
		}
	}
	return nil, backend.ErrNotFound
}

// DeleteChunks removes all chunk records of an index.
func (s *MemoryStore) DeleteChunks(ctx context.Context, backendName, indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, key(backendName, indexName))
	return nil
}

// CountChunks returns the number of chunk records in an index.
func (s *MemoryStore) CountChunks(ctx context.Context, backendName, indexName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks[key(backendName, indexName)])), nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
