package chunker

import (
	"strings"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Error("expected error for maxWords=0")
	}
	if _, err := New(-5, 0); err == nil {
		t.Error("expected error for negative maxWords")
	}
	if _, err := New(10, 10); err == nil {
		t.Error("expected error for overlap == maxWords")
	}
	if _, err := New(10, 15); err == nil {
		t.Error("expected error for overlap > maxWords")
	}
	if _, err := New(10, -1); err == nil {
		t.Error("expected error for negative overlap")
	}
	if _, err := New(140, 30); err != nil {
		t.Errorf("unexpected error for valid config: %v", err)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := New(140, 30)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := c.Split(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := c.Split("   \n\t  "); got != nil {
		t.Errorf("expected nil for whitespace input, got %v", got)
	}
}

func TestSplitShortText(t *testing.T) {
	c, _ := New(140, 30)
	chunks := c.Split("Hello world. This is short.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "Hello world. This is short." {
		t.Errorf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitOverlapCarriesTrailingWords(t *testing.T) {
	c, _ := New(5, 2)
	chunks := c.Split("one two three. four five six. seven eight nine.")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "one two three." {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
	// Each subsequent chunk starts with the last 2 words of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		carry := strings.Join(prev[len(prev)-2:], " ")
		if !strings.HasPrefix(chunks[i], carry) {
			t.Errorf("chunk %d %q does not start with carry %q from chunk %d", i, chunks[i], carry, i-1)
		}
	}
}

func TestSplitNoOverlapCoversAllSentences(t *testing.T) {
	c, _ := New(3, 0)
	text := "one two three. four five six. seven eight nine."
	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	// With zero overlap the chunks reconstruct the input exactly.
	if got := strings.Join(chunks, " "); got != text {
		t.Errorf("reconstruction mismatch:\n got  %q\n want %q", got, text)
	}
}

func TestSplitOversizedSentenceStaysWhole(t *testing.T) {
	c, _ := New(3, 0)
	text := "this sentence has far more words than the limit allows"
	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 oversized chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != text {
		t.Errorf("oversized sentence was broken: %q", chunks[0])
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"No terminator here", []string{"No terminator here"}},
		{"Version 1.2 stays together. Next one.", []string{"Version 1.2 stays together.", "Next one."}},
		{"Trailing spaces.   ", []string{"Trailing spaces."}},
		{"Really?! Yes.", []string{"Really?!", "Yes."}},
	}
	for _, tt := range tests {
		got := splitSentences(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitSentences(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitSentences(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestSplitNonEmptyAlwaysYieldsChunk(t *testing.T) {
	c, _ := New(140, 30)
	inputs := []string{"x", "one word", "a. b. c.", "no punctuation at all just words"}
	for _, in := range inputs {
		if got := c.Split(in); len(got) == 0 {
			t.Errorf("Split(%q) yielded no chunks", in)
		}
	}
}
