// Package generation produces answers from a query and retrieved contexts
// via an external text generation service.
package generation

import (
	"context"
	"errors"

	"github.com/hyperjump/kensaku/internal/models"
)

// ErrService marks a failure of the external generation service. Callers may
// retry; this package never retries on its own.
var ErrService = errors.New("generation service error")

// Generator turns a query and its retrieved contexts into an answer.
type Generator interface {
	Generate(ctx context.Context, query string, contexts []*models.SearchHit) (string, error)
	Close() error
}
