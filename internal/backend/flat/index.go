package flat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// flatIndex is a brute-force inner-product index over L2-normalized vectors,
// keyed by int64 handles. It has no persistence of its own: callers serialize
// it to bytes and store the blob externally.
type flatIndex struct {
	dim      int
	handles  []int64
	vectors  [][]float32
	byHandle map[int64]int
}

// handleScore is one raw k-NN candidate.
type handleScore struct {
	handle int64
	score  float64
}

func newFlatIndex(dim int) (*flatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	return &flatIndex{
		dim:      dim,
		byHandle: make(map[int64]int),
	}, nil
}

// add inserts (handle, vector) pairs. The whole batch is validated before any
// entry is inserted so a failed add leaves the index unchanged: dimensions
// must match and handles must not collide with existing entries or repeat
// within the batch.
func (x *flatIndex) add(handles []int64, vectors [][]float32) error {
	if len(handles) != len(vectors) {
		return fmt.Errorf("handles and vectors length mismatch: %d vs %d", len(handles), len(vectors))
	}
	seen := make(map[int64]struct{}, len(handles))
	for i, h := range handles {
		if len(vectors[i]) != x.dim {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(vectors[i]), x.dim)
		}
		if _, ok := x.byHandle[h]; ok {
			return fmt.Errorf("handle collision: %d already present", h)
		}
		if _, ok := seen[h]; ok {
			return fmt.Errorf("handle collision: %d repeated in batch", h)
		}
		seen[h] = struct{}{}
	}
	for i, h := range handles {
		vec := make([]float32, x.dim)
		copy(vec, vectors[i])
		x.byHandle[h] = len(x.handles)
		x.handles = append(x.handles, h)
		x.vectors = append(x.vectors, vec)
	}
	return nil
}

// search returns the top-k entries by inner product, descending.
func (x *flatIndex) search(query []float32, k int) ([]handleScore, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dim)
	}
	if k <= 0 || len(x.handles) == 0 {
		return nil, nil
	}
	scores := make([]handleScore, len(x.handles))
	for i, vec := range x.vectors {
		var dot float64
		for j := 0; j < x.dim; j++ {
			dot += float64(query[j]) * float64(vec[j])
		}
		scores[i] = handleScore{handle: x.handles[i], score: dot}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// size returns the number of vectors in the index.
func (x *flatIndex) size() int {
	return len(x.handles)
}

// Blob layout, little-endian: dim uint32, count uint32, then per entry an
// int64 handle followed by dim float32 components.

// serialize encodes the index to bytes for external storage.
func (x *flatIndex) serialize() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 8+len(x.handles)*(8+x.dim*4)))
	_ = binary.Write(buf, binary.LittleEndian, uint32(x.dim))
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(x.handles)))
	for i, h := range x.handles {
		_ = binary.Write(buf, binary.LittleEndian, h)
		for j := 0; j < x.dim; j++ {
			_ = binary.Write(buf, binary.LittleEndian, math.Float32bits(x.vectors[i][j]))
		}
	}
	return buf.Bytes()
}

// deserializeIndex decodes a blob produced by serialize. Any structural
// problem (short blob, trailing garbage, impossible counts) is an error; the
// caller maps it to the corrupt-index failure mode.
func deserializeIndex(blob []byte) (*flatIndex, error) {
	r := bytes.NewReader(blob)
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	idx, err := newFlatIndex(int(dim))
	if err != nil {
		return nil, err
	}
	expected := int64(count) * int64(8+dim*4)
	if int64(r.Len()) != expected {
		return nil, fmt.Errorf("blob length mismatch: %d remaining, expected %d", r.Len(), expected)
	}
	for i := uint32(0); i < count; i++ {
		var h int64
		if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
			return nil, fmt.Errorf("read handle %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("read vector %d: %w", i, err)
			}
			vec[j] = math.Float32frombits(bits)
		}
		if _, ok := idx.byHandle[h]; ok {
			return nil, fmt.Errorf("duplicate handle %d in blob", h)
		}
		idx.byHandle[h] = len(idx.handles)
		idx.handles = append(idx.handles, h)
		idx.vectors = append(idx.vectors, vec)
	}
	return idx, nil
}
