package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/plan"
)

const systemPrompt = `You are a research assistant. Answer the user's question
using only the tool results provided. Cite source URLs when present. If the
results are insufficient, say so plainly.`

// maxResultChars caps how much of each tool result goes into the
// prompt.
const maxResultChars = 4000

// Answer is the synthesized response to a request.
type Answer struct {
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	Degraded bool   `json:"degraded"`
}

// Synthesizer composes the final answer from a finished plan. With no
// provider, or a failing one, it degrades to a templated summary of
// the raw results rather than erroring.
type Synthesizer struct {
	provider Provider // optional
}

// NewSynthesizer creates a Synthesizer. provider may be nil.
func NewSynthesizer(provider Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize folds the plan's completed results into one answer.
func (s *Synthesizer) Synthesize(ctx context.Context, request string, p *plan.Plan) *Answer {
	results := p.CompletedResults()

	if s.provider != nil && s.provider.Available() {
		answer, err := s.generate(ctx, request, results)
		if err == nil {
			return answer
		}
		log.Warn().Err(err).Str("provider", s.provider.Name()).
			Msg("synthesis provider failed; using templated summary")
	}

	return &Answer{Text: templatedSummary(request, p, results), Degraded: true}
}

// Chat answers a request that needs no tools, small talk mostly.
func (s *Synthesizer) Chat(ctx context.Context, request string) *Answer {
	if s.provider != nil && s.provider.Available() {
		resp, err := s.provider.Chat(ctx, &ChatRequest{
			SystemPrompt: "You are a friendly, concise assistant.",
			Messages:     []Message{{Role: "user", Content: request}},
			Temperature:  0.7,
		})
		if err == nil {
			return &Answer{Text: strings.TrimSpace(resp.Content), Model: resp.Model}
		}
		log.Warn().Err(err).Msg("chat provider failed; using canned reply")
	}
	return &Answer{
		Text:     "Hello! Ask me something and I will research it with my tools.",
		Degraded: true,
	}
}

func (s *Synthesizer) generate(ctx context.Context, request string, results []plan.ToolResult) (*Answer, error) {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(request)
	sb.WriteString("\n\nTool results:\n")
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("\n[%s]\n%s\n", r.Tool, truncate(r.Result.Text(), maxResultChars)))
	}

	resp, err := s.provider.Chat(ctx, &ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     []Message{{Role: "user", Content: sb.String()}},
		Temperature:  0.3,
	})
	if err != nil {
		return nil, err
	}
	return &Answer{Text: strings.TrimSpace(resp.Content), Model: resp.Model}, nil
}

// templatedSummary renders results without a model: one section per
// tool, plus a note about anything that failed.
func templatedSummary(request string, p *plan.Plan, results []plan.ToolResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Results for: %s\n", request))

	if len(results) == 0 {
		sb.WriteString("\nNo tool produced a usable result.\n")
	}
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("\n## %s\n%s\n", r.Tool, truncate(r.Result.Text(), 1200)))
	}

	var failed []string
	for _, inv := range p.Invocations {
		if inv.Status == plan.StatusFailed {
			failed = append(failed, fmt.Sprintf("%s (%s)", inv.Tool, inv.ErrKind))
		}
	}
	if len(failed) > 0 {
		sb.WriteString(fmt.Sprintf("\nIncomplete: %s did not finish.\n", strings.Join(failed, ", ")))
	}
	return sb.String()
}

// truncate cuts on a rune boundary so multi-byte input never yields
// invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max-3 {
		return s
	}
	return string(runes[:max-3]) + "..."
}
