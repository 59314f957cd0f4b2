package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njmorgan/loom/internal/knowledge"
	"github.com/njmorgan/loom/pkg/types"
)

func githubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/golang/go", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"name":             "go",
			"full_name":        "golang/go",
			"description":      "The Go programming language",
			"stargazers_count": 120000,
			"forks_count":      17000,
			"language":         "Go",
			"html_url":         "https://github.com/golang/go",
		})
	})
	mux.HandleFunc("/repos/golang/go/commits", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"sha": "abc123", "commit": map[string]any{
				"message": "runtime: fix scheduler wakeup",
				"author":  map[string]any{"name": "gopher", "date": "2026-08-01T00:00:00Z"},
			}},
		})
	})
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 1,
			"items": []map[string]any{
				{"name": "loom", "full_name": "njmorgan/loom", "stargazers_count": 42, "html_url": "https://github.com/njmorgan/loom"},
			},
		})
	})
	mux.HandleFunc("/repos/golang/go/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"number": 101, "title": "cmd/go: confusing error", "state": "open",
				"html_url": "https://github.com/golang/go/issues/101",
				"user":     map[string]any{"login": "reporter"}},
		})
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"number": 7, "title": "found via search", "state": "open"},
			},
		})
	})
	return httptest.NewServer(mux)
}

func TestCodeRepoTool_LookupBySlug(t *testing.T) {
	srv := githubServer(t)
	defer srv.Close()

	tool := NewCodeRepoTool(WithGitHubURL(srv.URL), WithGitHubToken("tok"))
	params := map[string]types.Value{
		"query":    types.String("tell me about golang/go"),
		"entities": types.Array(types.String("golang/go")),
	}

	result, err := tool.Invoke(context.Background(), params)
	require.NoError(t, err)

	name, ok := result.At("repos[0].full_name")
	require.True(t, ok)
	s, _ := name.AsString()
	assert.Equal(t, "golang/go", s)

	msg, ok := result.At("commits[0].message")
	require.True(t, ok)
	s, _ = msg.AsString()
	assert.Equal(t, "runtime: fix scheduler wakeup", s)
}

func TestCodeRepoTool_SearchWithoutSlug(t *testing.T) {
	srv := githubServer(t)
	defer srv.Close()

	tool := NewCodeRepoTool(WithGitHubURL(srv.URL))
	params := map[string]types.Value{"query": types.String("orchestration engine")}

	result, err := tool.Invoke(context.Background(), params)
	require.NoError(t, err)

	name, ok := result.At("repos[0].full_name")
	require.True(t, ok)
	s, _ := name.AsString()
	assert.Equal(t, "njmorgan/loom", s)
}

func TestIssueTrackerTool_ListBySlug(t *testing.T) {
	srv := githubServer(t)
	defer srv.Close()

	tool := NewIssueTrackerTool(WithGitHubURL(srv.URL))
	params := map[string]types.Value{
		"query":    types.String("open issues in golang/go"),
		"entities": types.Array(types.String("golang/go")),
	}

	result, err := tool.Invoke(context.Background(), params)
	require.NoError(t, err)

	title, ok := result.At("issues[0].title")
	require.True(t, ok)
	s, _ := title.AsString()
	assert.Equal(t, "cmd/go: confusing error", s)

	count, _ := result.At("count")
	n, _ := count.AsNumber()
	assert.Equal(t, float64(1), n)
}

func TestIssueTrackerTool_SearchWithoutSlug(t *testing.T) {
	srv := githubServer(t)
	defer srv.Close()

	tool := NewIssueTrackerTool(WithGitHubURL(srv.URL))
	params := map[string]types.Value{"query": types.String("scheduler bug")}

	result, err := tool.Invoke(context.Background(), params)
	require.NoError(t, err)

	title, ok := result.At("issues[0].title")
	require.True(t, ok)
	s, _ := title.AsString()
	assert.Equal(t, "found via search", s)
}

type fixedRetriever struct {
	hits []knowledge.RankedResult
}

func (f *fixedRetriever) Retrieve(_ context.Context, _ string, limit int) []knowledge.RankedResult {
	if len(f.hits) > limit {
		return f.hits[:limit]
	}
	return f.hits
}

func TestKnowledgeTool_Invoke(t *testing.T) {
	tool := NewKnowledgeTool(&fixedRetriever{hits: []knowledge.RankedResult{
		{ID: "k1", Title: "BGP notes", Snippet: "route reflection basics", SourceType: "doc", RelevanceScore: 0.82},
	}})

	params := map[string]types.Value{
		"query": types.String("bgp route reflection"),
		"limit": types.Int(5),
	}
	require.NoError(t, tool.Validate(params))

	result, err := tool.Invoke(context.Background(), params)
	require.NoError(t, err)

	title, ok := result.At("results[0].title")
	require.True(t, ok)
	s, _ := title.AsString()
	assert.Equal(t, "BGP notes", s)

	count, _ := result.At("count")
	n, _ := count.AsNumber()
	assert.Equal(t, float64(1), n)
}

func TestKnowledgeTool_EmptyCorpus(t *testing.T) {
	tool := NewKnowledgeTool(&fixedRetriever{})

	result, err := tool.Invoke(context.Background(), map[string]types.Value{
		"query": types.String("anything"),
	})
	require.NoError(t, err)

	count, _ := result.At("count")
	n, _ := count.AsNumber()
	assert.Equal(t, float64(0), n)
}
