package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/pkg/types"
)

const defaultSearchEndpoint = "https://api.tavily.com/search"

// WebSearchTool queries a Tavily-compatible search API. Results are
// sanitized and cached under a short TTL to keep repeated plans from
// burning API quota.
type WebSearchTool struct {
	apiKey            string
	endpoint          string
	httpClient        *http.Client
	cache             *Cache
	dangerousPatterns []*regexp.Regexp
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// WebSearchOption configures the WebSearchTool.
type WebSearchOption func(*WebSearchTool)

// WithAPIKey sets the search API key.
func WithAPIKey(key string) WebSearchOption {
	return func(w *WebSearchTool) { w.apiKey = key }
}

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(url string) WebSearchOption {
	return func(w *WebSearchTool) { w.endpoint = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) WebSearchOption {
	return func(w *WebSearchTool) { w.httpClient = client }
}

// WithCache sets the result cache.
func WithCache(cache *Cache) WebSearchOption {
	return func(w *WebSearchTool) { w.cache = cache }
}

// NewWebSearchTool creates the web search adapter.
func NewWebSearchTool(opts ...WebSearchOption) *WebSearchTool {
	w := &WebSearchTool{
		endpoint:   defaultSearchEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      NewCache(100, 5*time.Minute),
	}
	w.compileDangerousPatterns()
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSearchTool) compileDangerousPatterns() {
	patterns := []string{
		`<script[^>]*>.*?</script>`,
		`javascript:`,
		`on\w+\s*=`,
		`data:\s*text/html`,
		`\x00`,
		`<iframe[^>]*>`,
		`<object[^>]*>`,
		`<embed[^>]*>`,
	}
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			w.dangerousPatterns = append(w.dangerousPatterns, re)
		}
	}
}

func (w *WebSearchTool) Kind() types.ToolKind { return types.ToolWebSearch }

func (w *WebSearchTool) Validate(params map[string]types.Value) error {
	query, err := stringParam(params, "query")
	if err != nil {
		return err
	}
	if len(query) > 500 {
		return fmt.Errorf("search query too long (max 500 characters)")
	}
	if w.apiKey == "" {
		return fmt.Errorf("search API key not configured")
	}
	return nil
}

func (w *WebSearchTool) Invoke(ctx context.Context, params map[string]types.Value) (types.Value, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return types.Null(), err
	}
	query = strings.TrimSpace(query)

	cacheKey := w.cache.Key(query)
	if cached, ok := w.cache.Get(cacheKey); ok {
		log.Debug().Str("query", query).Msg("search cache hit")
		return cached, nil
	}

	maxResults := intParam(params, "max_results", 5, 1, 10)
	depth := "basic"
	if d, ok := params["search_depth"]; ok {
		if s, ok := d.AsString(); ok && s == "advanced" {
			depth = "advanced"
		}
	}

	resp, err := w.call(ctx, &searchRequest{
		APIKey:        w.apiKey,
		Query:         query,
		SearchDepth:   depth,
		MaxResults:    maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return types.Null(), fmt.Errorf("web search: %w", err)
	}

	result := w.toValue(resp)
	w.cache.Set(cacheKey, result)

	log.Debug().Str("query", query).Int("results", len(resp.Results)).Msg("web search done")
	return result, nil
}

func (w *WebSearchTool) call(ctx context.Context, req *searchRequest) (*searchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned status %d", httpResp.StatusCode)
	}

	var resp searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// toValue sanitizes the response and shapes it for downstream path
// extraction: "results[i].url" and the flat "urls" list both work.
func (w *WebSearchTool) toValue(resp *searchResponse) types.Value {
	results := make([]types.Value, 0, len(resp.Results))
	urls := make([]types.Value, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, types.Object(map[string]types.Value{
			"title":   types.String(w.sanitize(r.Title)),
			"url":     types.String(r.URL),
			"content": types.String(w.sanitize(r.Content)),
			"score":   types.Number(r.Score),
		}))
		urls = append(urls, types.String(r.URL))
	}
	return types.Object(map[string]types.Value{
		"query":   types.String(resp.Query),
		"answer":  types.String(w.sanitize(resp.Answer)),
		"results": types.Array(results...),
		"urls":    types.Array(urls...),
	})
}

func (w *WebSearchTool) sanitize(text string) string {
	for _, pattern := range w.dangerousPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
