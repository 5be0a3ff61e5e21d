// Package flat implements the serialized-index backend: an in-memory flat
// inner-product index with no native persistence, fully serialized into the
// metadata document store on every mutation.
package flat

import (
	"crypto/sha256"
	"encoding/binary"
)

// Handle derives the 64-bit integer key the flat index uses for a chunk id.
// The mapping is a pure function of the id: the first 8 bytes of its SHA-256
// digest, reduced modulo 2^63-1 so the handle is always a non-negative int64.
// Collision-resistant for any realistic corpus; collisions are rejected at
// insert time rather than silently overwriting.
func Handle(chunkID string) int64 {
	sum := sha256.Sum256([]byte(chunkID))
	v := binary.BigEndian.Uint64(sum[:8])
	return int64(v % ((1 << 63) - 1))
}
