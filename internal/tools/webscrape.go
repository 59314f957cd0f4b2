package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/njmorgan/loom/pkg/types"
)

// maxScrapeBody caps how much of a page is read.
const maxScrapeBody = 512 * 1024

// WebScrapeTool fetches a page and reduces it to readable text. It is
// the downstream half of the search-then-scrape pattern: its url
// parameter usually arrives injected from a search result.
type WebScrapeTool struct {
	httpClient *http.Client
}

// NewWebScrapeTool creates the scrape adapter.
func NewWebScrapeTool(client *http.Client) *WebScrapeTool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebScrapeTool{httpClient: client}
}

func (w *WebScrapeTool) Kind() types.ToolKind { return types.ToolWebScrape }

func (w *WebScrapeTool) Validate(params map[string]types.Value) error {
	raw, err := stringParam(params, "url")
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	return nil
}

func (w *WebScrapeTool) Invoke(ctx context.Context, params map[string]types.Value) (types.Value, error) {
	target, err := stringParam(params, "url")
	if err != nil {
		return types.Null(), err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return types.Null(), fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "loom/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return types.Null(), fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.Null(), fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBody))
	if err != nil {
		return types.Null(), fmt.Errorf("read body: %w", err)
	}

	raw := string(body)
	return types.Object(map[string]types.Value{
		"url":          types.String(target),
		"status":       types.Int(resp.StatusCode),
		"content_type": types.String(resp.Header.Get("Content-Type")),
		"title":        types.String(extractTitle(raw)),
		"content":      types.String(stripHTML(raw)),
	}), nil
}

var (
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(m[1], " "))
}

// stripHTML reduces a page to whitespace-collapsed text. Good enough
// for feeding a synthesizer; not a readability engine.
func stripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
