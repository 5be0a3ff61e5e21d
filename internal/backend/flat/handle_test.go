package flat

import "testing"

func TestHandleDeterministic(t *testing.T) {
	a := Handle("chunk-abc-123")
	b := Handle("chunk-abc-123")
	if a != b {
		t.Errorf("same id produced different handles: %d vs %d", a, b)
	}
}

func TestHandleNonNegative(t *testing.T) {
	ids := []string{"", "a", "chunk-1", "chunk-2", "日本語", "9f8e7d6c-5b4a-3210-fedc-ba9876543210"}
	for _, id := range ids {
		if h := Handle(id); h < 0 {
			t.Errorf("Handle(%q) = %d, want non-negative", id, h)
		}
	}
}

func TestHandleDistinctIDs(t *testing.T) {
	seen := make(map[int64]string)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		h := Handle(id)
		if prev, ok := seen[h]; ok {
			t.Errorf("handle collision between %q and %q", prev, id)
		}
		seen[h] = id
	}
}
