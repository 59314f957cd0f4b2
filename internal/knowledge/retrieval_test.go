package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	hits []RankedResult
	err  error
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]RankedResult, error) {
	return s.hits, s.err
}

func hit(id string, score float64) RankedResult {
	return RankedResult{ID: id, Title: id, RelevanceScore: score}
}

func TestService_SemanticFirst(t *testing.T) {
	svc := NewService(
		WithSemantic(&stubSearcher{hits: []RankedResult{hit("sem", 0.8)}}),
		WithLexical(&stubSearcher{hits: []RankedResult{hit("lex", 0.9)}}),
	)

	got := svc.Retrieve(context.Background(), "q", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "sem", got[0].ID)
}

func TestService_FallsBackToLexicalOnError(t *testing.T) {
	svc := NewService(
		WithSemantic(&stubSearcher{err: errors.New("embedder down")}),
		WithLexical(&stubSearcher{hits: []RankedResult{hit("lex", 0.9)}}),
	)

	got := svc.Retrieve(context.Background(), "q", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "lex", got[0].ID)
}

func TestService_FallsBackWhenSemanticBelowThreshold(t *testing.T) {
	svc := NewService(
		WithSemantic(&stubSearcher{hits: []RankedResult{hit("weak", 0.01)}}),
		WithLexical(&stubSearcher{hits: []RankedResult{hit("lex", 0.5)}}),
	)

	got := svc.Retrieve(context.Background(), "q", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "lex", got[0].ID)
}

func TestService_EmptyWhenNothingMatches(t *testing.T) {
	svc := NewService(
		WithLexical(&stubSearcher{err: errors.New("db closed")}),
	)

	got := svc.Retrieve(context.Background(), "q", 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_NoTiersConfigured(t *testing.T) {
	svc := NewService()
	assert.Empty(t, svc.Retrieve(context.Background(), "q", 5))
}

func TestVectorIndex_RanksByCosine(t *testing.T) {
	// Deterministic fake embedder: a couple of fixed directions.
	// Keys match what the index embeds: "Title\nContent" for items,
	// the raw query for searches.
	vecs := map[string][]float32{
		"networking routers\n": {1, 0},
		"bread baking\n":       {0, 1},
		"router configs":       {0.9, 0.1},
	}
	embed := embedFunc(func(_ context.Context, text string) ([]float32, error) {
		if v, ok := vecs[text]; ok {
			return v, nil
		}
		return []float32{0.5, 0.5}, nil
	})

	idx := NewVectorIndex(embed)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, &Item{ID: "net", Title: "networking routers", Content: ""}))
	require.NoError(t, idx.Add(ctx, &Item{ID: "bread", Title: "bread baking", Content: ""}))
	require.Equal(t, 2, idx.Len())

	hits, err := idx.Search(ctx, "router configs", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "net", hits[0].ID)
	assert.Greater(t, hits[0].RelevanceScore, hits[1].RelevanceScore)
}

type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
