// Package classifier decides whether a request warrants external tool
// use and which tool kind it implicates. Classification is a pure,
// deterministic rule scan with no I/O.
package classifier

import (
	"regexp"
	"strings"

	"github.com/njmorgan/loom/pkg/types"
)

// Classification is the result of classifying a single request.
type Classification struct {
	// ShouldUseTools is false for small talk and other requests the
	// assistant can answer without external tools.
	ShouldUseTools bool `json:"should_use_tools"`

	// Tool is the primary tool kind implicated by the request. Only
	// meaningful when ShouldUseTools is true.
	Tool types.ToolKind `json:"tool,omitempty"`

	// Entities are salient phrases extracted from the request, used
	// to parameterize tool invocations and the final synthesis.
	Entities []string `json:"entities,omitempty"`

	// Confidence is a fixed heuristic score for the matched rule,
	// not a learned probability.
	Confidence float64 `json:"confidence"`

	// Rule names the rule that matched, for explainability.
	Rule string `json:"rule,omitempty"`
}

// rule is one entry in the ordered classification table. Rules are
// evaluated top to bottom; the first match wins.
type rule struct {
	name       string
	pattern    *regexp.Regexp
	tool       types.ToolKind
	confidence float64
}

// Classifier is a pure keyword/pattern intent classifier.
//
// Unmatched input falls through to DefaultDecision. The default ships
// as a generic web search with low confidence; callers that prefer a
// no-tools policy for unmatched input set DefaultDecision accordingly.
type Classifier struct {
	rules           []rule
	smallTalk       []string
	DefaultDecision Classification
}

// New creates a Classifier with the built-in rule table.
func New() *Classifier {
	return &Classifier{
		rules:     buildRules(),
		smallTalk: smallTalkPhrases(),
		DefaultDecision: Classification{
			ShouldUseTools: true,
			Tool:           types.ToolWebSearch,
			Confidence:     0.4,
			Rule:           "default_web_search",
		},
	}
}

// Classify runs the rule scan over the request text.
func (c *Classifier) Classify(request string) Classification {
	trimmed := strings.TrimSpace(strings.ToLower(request))
	if trimmed == "" {
		return Classification{ShouldUseTools: false, Confidence: 1.0, Rule: "empty"}
	}

	// Small talk short-circuits tool use entirely. Exact or prefix
	// match against a fixed phrase list.
	for _, phrase := range c.smallTalk {
		if trimmed == phrase || strings.HasPrefix(trimmed, phrase+" ") ||
			strings.HasPrefix(trimmed, phrase+",") || strings.HasPrefix(trimmed, phrase+"!") {
			return Classification{ShouldUseTools: false, Confidence: 0.95, Rule: "small_talk"}
		}
	}

	entities := extractEntities(request)

	for _, r := range c.rules {
		if r.pattern.MatchString(trimmed) {
			return Classification{
				ShouldUseTools: true,
				Tool:           r.tool,
				Entities:       entities,
				Confidence:     r.confidence,
				Rule:           r.name,
			}
		}
	}

	out := c.DefaultDecision
	out.Entities = entities
	return out
}

// buildRules returns the ordered rule table. More specific rules come
// first; the generic web-search rules come last.
func buildRules() []rule {
	return []rule{
		{
			name:       "code_repo",
			pattern:    regexp.MustCompile(`\b(github|gitlab|repo(sitory)?|commit|pull request|branch|codebase)\b`),
			tool:       types.ToolCodeRepo,
			confidence: 0.9,
		},
		{
			name:       "issue_tracker",
			pattern:    regexp.MustCompile(`\b(jira|ticket|issue( tracker)?|bug report|backlog|sprint)\b`),
			tool:       types.ToolIssueTracker,
			confidence: 0.85,
		},
		{
			name:       "knowledge_base",
			pattern:    regexp.MustCompile(`\b(my notes?|knowledge( base)?|saved|remember when|wiki|runbook|sop)\b`),
			tool:       types.ToolKnowledge,
			confidence: 0.85,
		},
		{
			name:       "web_scrape",
			pattern:    regexp.MustCompile(`\b(scrape|fetch|read (this|that) (page|url|link))\b|https?://`),
			tool:       types.ToolWebScrape,
			confidence: 0.8,
		},
		{
			name:       "web_search",
			pattern:    regexp.MustCompile(`\b(search|look up|latest|news|current|today|price|weather|who is|what is)\b`),
			tool:       types.ToolWebSearch,
			confidence: 0.75,
		},
	}
}

// smallTalkPhrases is the fixed greeting/small-talk list that rejects
// tool use. Matched exactly or as a prefix.
func smallTalkPhrases() []string {
	return []string{
		"hi",
		"hello",
		"hey",
		"good morning",
		"good afternoon",
		"good evening",
		"thanks",
		"thank you",
		"how are you",
		"bye",
		"goodbye",
	}
}

var (
	quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	repoRe   = regexp.MustCompile(`\b([A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+)\b`)
	urlRe    = regexp.MustCompile(`https?://\S+`)
)

// extractEntities pulls salient phrases out of the raw request:
// quoted strings, owner/name repository slugs, and URLs.
func extractEntities(request string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, m := range quotedRe.FindAllStringSubmatch(request, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	for _, m := range urlRe.FindAllString(request, -1) {
		add(strings.TrimRight(m, ".,;)"))
	}
	for _, m := range repoRe.FindAllString(request, -1) {
		// Skip things that look like file paths or dates rather than
		// owner/name slugs.
		if strings.Contains(m, ".") && !strings.Contains(m, ".git") {
			continue
		}
		add(m)
	}
	return out
}
