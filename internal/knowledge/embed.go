package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// VectorIndex is an in-memory semantic searcher over embedded items.
// It is intentionally small: the corpus here is a personal knowledge
// base, not a vector database workload.
type VectorIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []vectorEntry
}

type vectorEntry struct {
	id      string
	title   string
	snippet string
	source  string
	vec     []float32
}

// NewVectorIndex creates an index backed by the given embedder.
func NewVectorIndex(embedder Embedder) *VectorIndex {
	return &VectorIndex{embedder: embedder}
}

// Add embeds an item and stores its vector.
func (x *VectorIndex) Add(ctx context.Context, item *Item) error {
	vec, err := x.embedder.Embed(ctx, item.Title+"\n"+item.Content)
	if err != nil {
		return fmt.Errorf("embed item %s: %w", item.ID, err)
	}

	snippet := item.Content
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	x.mu.Lock()
	x.entries = append(x.entries, vectorEntry{
		id:      item.ID,
		title:   item.Title,
		snippet: snippet,
		source:  string(item.SourceType),
		vec:     vec,
	})
	x.mu.Unlock()
	return nil
}

// Len returns the number of indexed items.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search implements Searcher with cosine similarity against the
// query embedding.
func (x *VectorIndex) Search(ctx context.Context, query string, limit int) ([]RankedResult, error) {
	if limit <= 0 {
		limit = 10
	}
	qvec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	x.mu.RLock()
	results := make([]RankedResult, 0, len(x.entries))
	for _, e := range x.entries {
		results = append(results, RankedResult{
			ID:             e.id,
			Title:          e.title,
			Snippet:        e.snippet,
			SourceType:     e.source,
			RelevanceScore: cosine(qvec, e.vec),
		})
	}
	x.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
