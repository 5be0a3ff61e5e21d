// Package chunker splits document text into overlapping word-bounded segments.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
)

// Chunker packs sentences into segments of at most maxWords words, carrying
// overlap trailing words into the next segment to preserve context across
// boundaries.
type Chunker struct {
	maxWords int
	overlap  int
}

// New creates a chunker. overlap must be smaller than maxWords; violating
// that is a configuration error reported once at startup, not per call.
func New(maxWords, overlap int) (*Chunker, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("maxWords must be positive, got %d", maxWords)
	}
	if overlap < 0 || overlap >= maxWords {
		return nil, fmt.Errorf("overlap (%d) must be in [0, maxWords) with maxWords=%d", overlap, maxWords)
	}
	return &Chunker{maxWords: maxWords, overlap: overlap}, nil
}

// Split returns the ordered segments of text. Empty or whitespace-only input
// yields zero segments. Non-empty input always yields at least one segment.
// A single sentence longer than maxWords becomes one oversized segment rather
// than being broken mid-sentence.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	sentences := splitSentences(text)

	var chunks []string
	var current []string
	currentLen := 0

	for _, sent := range sentences {
		words := strings.Fields(sent)
		if currentLen+len(words) <= c.maxWords || len(current) == 0 {
			current = append(current, sent)
			currentLen += len(words)
			continue
		}
		chunks = append(chunks, strings.Join(current, " "))
		if c.overlap > 0 {
			all := strings.Fields(strings.Join(current, " "))
			start := len(all) - c.overlap
			if start < 0 {
				start = 0
			}
			carry := strings.Join(all[start:], " ")
			current = []string{carry, sent}
			currentLen = len(all) - start + len(words)
		} else {
			current = []string{sent}
			currentLen = len(words)
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitSentences splits text on sentence-terminating punctuation followed by
// whitespace. Terminators stay attached to their sentence. Text without any
// terminator comes back as a single sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sent := strings.TrimSpace(string(runes[start : i+1]))
		if sent != "" {
			sentences = append(sentences, sent)
		}
		// Skip the whitespace run after the terminator.
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		sent := strings.TrimSpace(string(runes[start:]))
		if sent != "" {
			sentences = append(sentences, sent)
		}
	}
	return sentences
}
