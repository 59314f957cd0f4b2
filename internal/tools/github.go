package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/njmorgan/loom/pkg/types"
)

const defaultGitHubURL = "https://api.github.com"

// githubClient is the shared HTTP layer for the repository and issue
// tracker tools.
type githubClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// GitHubOption configures the GitHub-backed tools.
type GitHubOption func(*githubClient)

// WithGitHubURL overrides the API base URL, mainly for tests and
// GitHub Enterprise deployments.
func WithGitHubURL(base string) GitHubOption {
	return func(c *githubClient) { c.baseURL = base }
}

// WithGitHubToken sets the bearer token for authenticated requests.
func WithGitHubToken(token string) GitHubOption {
	return func(c *githubClient) { c.token = token }
}

// WithGitHubHTTPClient sets a custom HTTP client.
func WithGitHubHTTPClient(client *http.Client) GitHubOption {
	return func(c *githubClient) { c.httpClient = client }
}

func newGitHubClient(opts ...GitHubOption) *githubClient {
	c := &githubClient{
		baseURL:    defaultGitHubURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *githubClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var repoSlugRe = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)

// repoSlug finds an owner/name slug in the entities parameter, or ""
// when none is present.
func repoSlug(params map[string]types.Value) string {
	entities, ok := params["entities"]
	if !ok {
		return ""
	}
	for i := 0; i < entities.Len(); i++ {
		v, _ := entities.Index(i)
		if s, ok := v.AsString(); ok && repoSlugRe.MatchString(s) {
			return s
		}
	}
	return ""
}
