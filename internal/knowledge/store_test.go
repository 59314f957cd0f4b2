package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddAndSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &Item{
		Title:      "BGP route reflection",
		Content:    "Route reflectors avoid full iBGP mesh by reflecting routes between clients.",
		SourceType: SourceDoc,
		Tags:       []string{"bgp", "routing"},
		TrustScore: 0.9,
	}))
	require.NoError(t, s.Add(ctx, &Item{
		Title:      "Sourdough starter",
		Content:    "Feed the starter daily with equal parts flour and water.",
		SourceType: SourceNote,
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := s.Search(ctx, "route reflectors", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "BGP route reflection", hits[0].Title)
	assert.Equal(t, "doc", hits[0].SourceType)
	assert.Greater(t, hits[0].RelevanceScore, 0.0)
}

func TestStore_ItemsRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &Item{
		Title:      "BGP route reflection",
		Content:    "Route reflectors avoid full iBGP mesh.",
		SourceType: SourceDoc,
		Tags:       []string{"bgp"},
		TrustScore: 0.9,
	}))
	require.NoError(t, s.Add(ctx, &Item{Title: "untagged", Content: "no tags here"}))

	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byTitle := map[string]Item{}
	for _, item := range items {
		byTitle[item.Title] = item
	}
	bgp := byTitle["BGP route reflection"]
	assert.Equal(t, SourceDoc, bgp.SourceType)
	assert.Equal(t, []string{"bgp"}, bgp.Tags)
	assert.Equal(t, 0.9, bgp.TrustScore)
	assert.Nil(t, byTitle["untagged"].Tags)
}

func TestStore_SearchNoMatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &Item{Title: "alpha", Content: "beta gamma"}))

	hits, err := s.Search(ctx, "zzzzunrelated", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_SearchEmptyQuery(t *testing.T) {
	s := testStore(t)

	_, err := s.Search(context.Background(), "   ", 10)
	assert.Error(t, err)
}

func TestStore_SearchQuotedInputSanitized(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &Item{Title: "widget pricing", Content: "the acme widget costs ten dollars"}))

	// FTS5 operators and stray quotes in user input must not produce
	// a syntax error.
	hits, err := s.Search(ctx, `acme "widget OR (pricing`, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestPrepareFTSQuery(t *testing.T) {
	assert.Equal(t, `"acme" OR "widget"`, prepareFTSQuery("acme widget"))
	assert.Equal(t, `"acme"`, prepareFTSQuery(`"acme"`))
}

func TestBlendScore(t *testing.T) {
	// Stronger BM25 (more negative) must score higher at equal trust.
	assert.Greater(t, blendScore(-5, 0.5), blendScore(-1, 0.5))
	// Score stays in [0,1].
	assert.LessOrEqual(t, blendScore(-100, 1.0), 1.0)
	assert.GreaterOrEqual(t, blendScore(5, 0), 0.0)
}
