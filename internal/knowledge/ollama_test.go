package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedServer(t *testing.T, vecs map[string][]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Model)

		vec, ok := vecs[req.Prompt]
		if !ok {
			vec = []float64{0, 0, 1}
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: vec})
	}))
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := embedServer(t, map[string][]float64{"hello": {0.1, 0.2, 0.3}})
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "")
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text")
	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOllamaEmbedder_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "")
	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
}

// The embedder, vector index, and retrieval service together form the
// semantic tier: a query embedding close to one item's embedding must
// surface that item ahead of the rest.
func TestSemanticTierOverOllamaEmbedder(t *testing.T) {
	srv := embedServer(t, map[string][]float64{
		"routers\nBGP peers flap on firmware 1.2": {1, 0, 0},
		"baking\nsourdough starter needs feeding": {0, 1, 0},
		"why do the BGP peers flap":               {0.9, 0.1, 0},
	})
	defer srv.Close()

	index := NewVectorIndex(NewOllamaEmbedder(srv.URL, ""))
	ctx := context.Background()
	require.NoError(t, index.Add(ctx, &Item{ID: "net", Title: "routers", Content: "BGP peers flap on firmware 1.2"}))
	require.NoError(t, index.Add(ctx, &Item{ID: "bread", Title: "baking", Content: "sourdough starter needs feeding"}))

	svc := NewService(WithSemantic(index))
	hits := svc.Retrieve(ctx, "why do the BGP peers flap", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "net", hits[0].ID)
}

func TestSemanticTierFallsBackWhenEmbedderDown(t *testing.T) {
	srv := embedServer(t, nil)
	index := NewVectorIndex(NewOllamaEmbedder(srv.URL, ""))
	srv.Close() // embedder now unreachable

	store := testStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, &Item{
		Title:      "routers",
		Content:    "BGP peers flap on firmware 1.2",
		SourceType: SourceNote,
	}))

	svc := NewService(WithSemantic(index), WithLexical(store))
	hits := svc.Retrieve(ctx, "BGP peers", 5)
	require.NotEmpty(t, hits, "lexical tier must answer when the embedder is down")
	assert.Equal(t, "routers", hits[0].Title)
}
