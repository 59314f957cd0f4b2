package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/njmorgan/loom/internal/bus"
	"github.com/njmorgan/loom/internal/plan"
)

var (
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
)

func init() {
	lipgloss.SetColorProfile(termenv.ColorProfile())
}

// renderAnswer renders markdown for the terminal, falling back to the
// raw text when the renderer cannot initialize.
func renderAnswer(text string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// renderPlanTrace summarizes each invocation on one line.
func renderPlanTrace(p *plan.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("plan %s: %d invocations in %d waves, %d adaptations",
		p.ID, len(p.Invocations), len(p.Waves), p.Adaptations)))
	for wave, ids := range p.Waves {
		for _, id := range ids {
			inv := p.Invocation(id)
			if inv == nil {
				continue
			}
			b.WriteString(renderInvocationLine(wave, inv))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderInvocationLine(wave int, inv *plan.Invocation) string {
	status := okStyle.Render("✓")
	detail := inv.Duration().Round(time.Millisecond).String()
	switch inv.Status {
	case plan.StatusFailed:
		status = failStyle.Render("✗")
		detail = inv.Error
	case plan.StatusPending, plan.StatusExecuting:
		status = dimStyle.Render("·")
		detail = string(inv.Status)
	}
	return fmt.Sprintf("  %s wave %d  %s  %s",
		status, wave, toolStyle.Render(string(inv.Tool)), dimStyle.Render(detail))
}

// renderEvent formats a live progress line for --verbose mode.
func renderEvent(e bus.Event) (string, bool) {
	switch e.Type {
	case bus.EventInvocationStarted:
		return fmt.Sprintf("  %s %s...", dimStyle.Render("→"), toolStyle.Render(e.Tool)), true
	case bus.EventInvocationCompleted:
		return fmt.Sprintf("  %s %s (%dms)", okStyle.Render("✓"), toolStyle.Render(e.Tool), e.DurationMs), true
	case bus.EventInvocationFailed:
		return fmt.Sprintf("  %s %s: %s", failStyle.Render("✗"), toolStyle.Render(e.Tool), e.Error), true
	case bus.EventPlanAdapted:
		return dimStyle.Render("  plan adapted: follow-up lookup queued"), true
	default:
		return "", false
	}
}
