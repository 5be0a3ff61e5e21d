// Package models defines core data structures for documents, chunks, and retrieval results.
package models

// Document is a single input row from a tabular source. Documents are never
// stored directly; they exist only through the chunks derived from them.
type Document struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Chunk is the atomic unit of indexing and retrieval: a bounded text segment
// of a document together with its embedding. Embedding and metadata are
// immutable after creation.
type Chunk struct {
	ChunkID     string    `json:"chunk_id"`
	DocID       string    `json:"doc_id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Text        string    `json:"-"`
	TextSnippet string    `json:"text_snippet"`
	Embedding   []float32 `json:"-"`
}
