package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/njmorgan/loom/pkg/types"
)

// IssueTrackerTool lists or searches issues on a GitHub-compatible
// API. With an owner/name entity it lists that repository's open
// issues; otherwise it searches issues by query.
type IssueTrackerTool struct {
	client *githubClient
}

// NewIssueTrackerTool creates the issue tracker adapter.
func NewIssueTrackerTool(opts ...GitHubOption) *IssueTrackerTool {
	return &IssueTrackerTool{client: newGitHubClient(opts...)}
}

func (t *IssueTrackerTool) Kind() types.ToolKind { return types.ToolIssueTracker }

func (t *IssueTrackerTool) Validate(params map[string]types.Value) error {
	_, err := stringParam(params, "query")
	return err
}

type issuePayload struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
}

func (t *IssueTrackerTool) Invoke(ctx context.Context, params map[string]types.Value) (types.Value, error) {
	limit := intParam(params, "limit", 10, 1, 30)

	state := "open"
	if s, ok := params["state"]; ok {
		if v, ok := s.AsString(); ok && (v == "closed" || v == "all") {
			state = v
		}
	}

	var issues []issuePayload
	if slug := repoSlug(params); slug != "" {
		q := url.Values{
			"state":    {state},
			"per_page": {strconv.Itoa(limit)},
		}
		if err := t.client.getJSON(ctx, "/repos/"+slug+"/issues", q, &issues); err != nil {
			return types.Null(), fmt.Errorf("issues for %s: %w", slug, err)
		}
	} else {
		query, err := stringParam(params, "query")
		if err != nil {
			return types.Null(), err
		}
		var payload struct {
			Items []issuePayload `json:"items"`
		}
		q := url.Values{
			"q":        {query + " is:issue state:" + state},
			"per_page": {strconv.Itoa(limit)},
		}
		if err := t.client.getJSON(ctx, "/search/issues", q, &payload); err != nil {
			return types.Null(), fmt.Errorf("issue search %q: %w", query, err)
		}
		issues = payload.Items
	}

	vals := make([]types.Value, 0, len(issues))
	for _, is := range issues {
		vals = append(vals, types.Object(map[string]types.Value{
			"number": types.Int(is.Number),
			"title":  types.String(is.Title),
			"state":  types.String(is.State),
			"url":    types.String(is.HTMLURL),
			"author": types.String(is.User.Login),
		}))
	}
	return types.Object(map[string]types.Value{
		"issues": types.Array(vals...),
		"count":  types.Int(len(vals)),
	}), nil
}
