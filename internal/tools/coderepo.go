package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/pkg/types"
)

// CodeRepoTool looks up repositories on a GitHub-compatible API. With
// an owner/name entity it fetches that repository plus its recent
// commits; otherwise it searches repositories by query.
type CodeRepoTool struct {
	client *githubClient
}

// NewCodeRepoTool creates the repository lookup adapter.
func NewCodeRepoTool(opts ...GitHubOption) *CodeRepoTool {
	return &CodeRepoTool{client: newGitHubClient(opts...)}
}

func (t *CodeRepoTool) Kind() types.ToolKind { return types.ToolCodeRepo }

func (t *CodeRepoTool) Validate(params map[string]types.Value) error {
	_, err := stringParam(params, "query")
	return err
}

type repoPayload struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	Language    string `json:"language"`
	HTMLURL     string `json:"html_url"`
}

type commitPayload struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

func (t *CodeRepoTool) Invoke(ctx context.Context, params map[string]types.Value) (types.Value, error) {
	limit := intParam(params, "limit", 10, 1, 30)

	if slug := repoSlug(params); slug != "" {
		return t.lookup(ctx, slug, limit)
	}

	query, err := stringParam(params, "query")
	if err != nil {
		return types.Null(), err
	}
	return t.search(ctx, query, limit)
}

func (t *CodeRepoTool) lookup(ctx context.Context, slug string, limit int) (types.Value, error) {
	var repo repoPayload
	if err := t.client.getJSON(ctx, "/repos/"+slug, nil, &repo); err != nil {
		return types.Null(), fmt.Errorf("repo %s: %w", slug, err)
	}

	// Commit history is best-effort; an empty repo 409s.
	var commits []commitPayload
	q := url.Values{"per_page": {strconv.Itoa(limit)}}
	if err := t.client.getJSON(ctx, "/repos/"+slug+"/commits", q, &commits); err != nil {
		log.Debug().Str("repo", slug).Err(err).Msg("commit listing failed")
		commits = nil
	}

	commitVals := make([]types.Value, 0, len(commits))
	for _, c := range commits {
		commitVals = append(commitVals, types.Object(map[string]types.Value{
			"sha":     types.String(c.SHA),
			"message": types.String(c.Commit.Message),
			"author":  types.String(c.Commit.Author.Name),
			"date":    types.String(c.Commit.Author.Date),
		}))
	}

	return types.Object(map[string]types.Value{
		"repos":   types.Array(repoValue(repo)),
		"commits": types.Array(commitVals...),
		"count":   types.Int(1),
	}), nil
}

func (t *CodeRepoTool) search(ctx context.Context, query string, limit int) (types.Value, error) {
	var payload struct {
		TotalCount int           `json:"total_count"`
		Items      []repoPayload `json:"items"`
	}
	q := url.Values{
		"q":        {query},
		"per_page": {strconv.Itoa(limit)},
	}
	if err := t.client.getJSON(ctx, "/search/repositories", q, &payload); err != nil {
		return types.Null(), fmt.Errorf("repo search %q: %w", query, err)
	}

	repos := make([]types.Value, 0, len(payload.Items))
	for _, r := range payload.Items {
		repos = append(repos, repoValue(r))
	}
	return types.Object(map[string]types.Value{
		"repos":   types.Array(repos...),
		"commits": types.Array(),
		"count":   types.Int(len(payload.Items)),
	}), nil
}

func repoValue(r repoPayload) types.Value {
	return types.Object(map[string]types.Value{
		"name":        types.String(r.Name),
		"full_name":   types.String(r.FullName),
		"description": types.String(r.Description),
		"stars":       types.Int(r.Stars),
		"forks":       types.Int(r.Forks),
		"language":    types.String(r.Language),
		"url":         types.String(r.HTMLURL),
	})
}
