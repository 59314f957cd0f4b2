// Package knowledge provides the local knowledge retrieval service:
// semantic search when an embedder is available, SQLite FTS5 lexical
// search as the fallback, and an empty result set as the last resort.
package knowledge

import "context"

// SourceType labels where a knowledge item came from.
type SourceType string

const (
	SourceDoc    SourceType = "doc"
	SourceNote   SourceType = "note"
	SourceSearch SourceType = "web_search"
)

// Item is a stored knowledge entry.
type Item struct {
	ID         string
	Title      string
	Content    string
	SourceType SourceType
	Tags       []string
	TrustScore float64
}

// RankedResult is one retrieval hit with its normalized score.
type RankedResult struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Snippet        string  `json:"snippet"`
	SourceType     string  `json:"source_type"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Searcher is one retrieval strategy. Implementations return hits in
// descending relevance order.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]RankedResult, error)
}

// Embedder turns text into a dense vector. Implementations typically
// call a local model server.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever is the service boundary the orchestration layer consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) []RankedResult
}
