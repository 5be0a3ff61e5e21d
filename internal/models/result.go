package models

// SearchHit is a single retrieval result: a chunk reference with its
// similarity score and the joined metadata. Higher score means more similar.
type SearchHit struct {
	ChunkID     string  `json:"chunk_id"`
	DocID       string  `json:"doc_id"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	TextSnippet string  `json:"text_snippet"`
	Score       float64 `json:"score"`
}

// RAGResult is the full answer to a retrieval query. Contexts are ordered by
// descending score; Backend identifies which adapter served the request.
type RAGResult struct {
	Query    string       `json:"query"`
	Answer   string       `json:"answer"`
	Contexts []*SearchHit `json:"contexts"`
	TopK     int          `json:"top_k"`
	Backend  string       `json:"backend"`
}
