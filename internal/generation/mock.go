package generation

import (
	"context"
	"fmt"

	"github.com/hyperjump/kensaku/internal/models"
)

// MockGenerator is a deterministic generator for tests. It records every
// call so tests can assert the generator was invoked even with zero contexts.
type MockGenerator struct {
	Calls        int
	LastQuery    string
	LastContexts []*models.SearchHit
	Err          error
}

// Generate returns a canned answer naming the query and context count.
func (g *MockGenerator) Generate(ctx context.Context, query string, contexts []*models.SearchHit) (string, error) {
	g.Calls++
	g.LastQuery = query
	g.LastContexts = contexts
	if g.Err != nil {
		return "", g.Err
	}
	return fmt.Sprintf("answer(%s) from %d contexts", query, len(contexts)), nil
}

// Close is a no-op for MockGenerator.
func (g *MockGenerator) Close() error {
	return nil
}
