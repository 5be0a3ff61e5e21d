package backend

import "errors"

// Sentinel errors shared across backends. Mutating operations guarantee that
// a reported failure implies no partial state change visible to subsequent
// readers.
var (
	// ErrNotFound means the named index (or a requested record) is absent.
	ErrNotFound = errors.New("index not found")

	// ErrAlreadyExists means create was called on a live index name.
	ErrAlreadyExists = errors.New("index already exists")

	// ErrDimensionMismatch means an embedding's dimension disagrees with the
	// index's declared dimension. Rejected before any persistence write.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexCorrupt means the serialized index blob failed to deserialize.
	// Fatal for that index only; other indices and the process are unaffected.
	ErrIndexCorrupt = errors.New("index blob corrupt")
)
