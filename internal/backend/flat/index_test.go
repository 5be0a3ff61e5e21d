package flat

import "testing"

func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestIndexAddAndSearch(t *testing.T) {
	idx, err := newFlatIndex(4)
	if err != nil {
		t.Fatalf("newFlatIndex failed: %v", err)
	}
	handles := []int64{10, 20, 30}
	vectors := [][]float32{unitVec(4, 0), unitVec(4, 1), unitVec(4, 2)}
	if err := idx.add(handles, vectors); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if idx.size() != 3 {
		t.Fatalf("size = %d, want 3", idx.size())
	}

	got, err := idx.search(unitVec(4, 1), 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].handle != 20 {
		t.Errorf("best match handle = %d, want 20", got[0].handle)
	}
	if got[0].score < 0.999 {
		t.Errorf("self-match score = %f, want ~1", got[0].score)
	}
}

func TestIndexAddDimensionMismatch(t *testing.T) {
	idx, _ := newFlatIndex(4)
	err := idx.add([]int64{1}, [][]float32{{1, 0}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if idx.size() != 0 {
		t.Errorf("failed add changed the index: size %d", idx.size())
	}
}

func TestIndexAddRejectsCollisions(t *testing.T) {
	idx, _ := newFlatIndex(4)
	if err := idx.add([]int64{7}, [][]float32{unitVec(4, 0)}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	// Collision with an existing handle.
	if err := idx.add([]int64{7}, [][]float32{unitVec(4, 1)}); err == nil {
		t.Error("expected collision error for existing handle")
	}
	// Collision within one batch. Nothing from the batch may land.
	if err := idx.add([]int64{8, 8}, [][]float32{unitVec(4, 1), unitVec(4, 2)}); err == nil {
		t.Error("expected collision error for repeated handle in batch")
	}
	if idx.size() != 1 {
		t.Errorf("size = %d, want 1 after rejected batches", idx.size())
	}
}

func TestIndexSearchEmpty(t *testing.T) {
	idx, _ := newFlatIndex(4)
	got, err := idx.search(unitVec(4, 0), 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates from empty index, got %d", len(got))
	}
}

func TestIndexSerializeRoundTrip(t *testing.T) {
	idx, _ := newFlatIndex(3)
	handles := []int64{100, 200, 300, 400}
	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
		{-0.7, 0.8, -0.9},
		{1, 0, 0},
	}
	if err := idx.add(handles, vectors); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	restored, err := deserializeIndex(idx.serialize())
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if restored.size() != idx.size() {
		t.Fatalf("size after round trip = %d, want %d", restored.size(), idx.size())
	}

	query := []float32{0.3, 0.2, 0.1}
	want, _ := idx.search(query, 4)
	got, err := restored.search(query, 4)
	if err != nil {
		t.Fatalf("search on restored index failed: %v", err)
	}
	for i := range want {
		if got[i].handle != want[i].handle || got[i].score != want[i].score {
			t.Errorf("candidate %d differs after round trip: got (%d, %f), want (%d, %f)",
				i, got[i].handle, got[i].score, want[i].handle, want[i].score)
		}
	}
}

func TestDeserializeRejectsCorruptBlobs(t *testing.T) {
	idx, _ := newFlatIndex(3)
	_ = idx.add([]int64{1, 2}, [][]float32{{1, 0, 0}, {0, 1, 0}})
	blob := idx.serialize()

	cases := map[string][]byte{
		"empty":     {},
		"truncated": blob[:len(blob)-5],
		"trailing":  append(append([]byte{}, blob...), 0xFF),
		"garbage":   {0xDE, 0xAD, 0xBE, 0xEF},
	}
	for name, b := range cases {
		if _, err := deserializeIndex(b); err == nil {
			t.Errorf("%s blob deserialized without error", name)
		}
	}
}
