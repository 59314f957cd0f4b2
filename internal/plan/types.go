// Package plan defines the in-memory execution plan model: tool
// invocations, their dependency edges, the wave partition, and the
// ContextMemory used for cross-step parameter propagation. A Plan is
// built once per request, mutated in place while it runs, and
// discarded afterwards; plans are never reused across requests.
package plan

import (
	"fmt"
	"time"

	"github.com/njmorgan/loom/pkg/types"
)

// Status is the lifecycle state of an invocation or a plan.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrorKind classifies invocation and plan failures.
type ErrorKind string

const (
	// ErrKindNone means no error.
	ErrKindNone ErrorKind = ""
	// ErrKindTimeout means the tool call exceeded its per-call timeout.
	ErrKindTimeout ErrorKind = "tool_invocation_timeout"
	// ErrKindFailure means the remote tool reported an error.
	ErrKindFailure ErrorKind = "tool_invocation_failure"
	// ErrKindAborted means the plan was aborted before this
	// invocation could run (strict failure policy or cancellation).
	ErrKindAborted ErrorKind = "plan_aborted"
)

// DiagnosticKind classifies non-fatal conditions recorded on a plan.
type DiagnosticKind string

const (
	// DiagCyclicDependency is recorded when the resolver had to
	// force-schedule invocations to break a dependency cycle.
	DiagCyclicDependency DiagnosticKind = "cyclic_dependency"
)

// Diagnostic is a recorded, non-fatal condition observed while
// resolving or executing a plan.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	// Invocations lists the invocation ids involved, if any.
	Invocations []string `json:"invocations,omitempty"`
}

// Dependency declares that one invocation parameter is populated from
// another invocation's result.
type Dependency struct {
	// Source is the id of the invocation whose result feeds this one.
	Source string `json:"source"`
	// Parameter is the name of the parameter to populate.
	Parameter string `json:"parameter"`
	// SourcePath is the extraction path evaluated against the source
	// result, e.g. "results[0].url".
	SourcePath string `json:"source_path"`
}

// Invocation is a single request to one external tool with bound
// parameters.
type Invocation struct {
	ID         string                 `json:"id"`
	Tool       types.ToolKind         `json:"tool"`
	Parameters map[string]types.Value `json:"parameters"`

	Status Status      `json:"status"`
	Result types.Value `json:"result,omitempty"`
	// Error holds the failure message; ErrKind classifies it.
	Error   string    `json:"error,omitempty"`
	ErrKind ErrorKind `json:"error_kind,omitempty"`

	Dependencies []Dependency `json:"dependencies,omitempty"`

	// Parallel reports whether the invocation may run alongside
	// siblings. The resolver clears it when it infers a dependency.
	Parallel bool `json:"parallel"`

	// Priority breaks ties during scheduling; lower runs earlier.
	Priority int `json:"priority"`

	Estimate  time.Duration `json:"estimate"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// Duration returns the observed execution time, or zero when the
// invocation has not finished.
func (inv *Invocation) Duration() time.Duration {
	if inv.StartedAt == nil || inv.EndedAt == nil {
		return 0
	}
	return inv.EndedAt.Sub(*inv.StartedAt)
}

// DependsOn reports whether the invocation declares a dependency on
// the given invocation id.
func (inv *Invocation) DependsOn(id string) bool {
	for _, d := range inv.Dependencies {
		if d.Source == id {
			return true
		}
	}
	return false
}

// Plan is the full, possibly growing, set of invocations plus the
// wave partition computed by the resolver.
type Plan struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Invocations []*Invocation `json:"invocations"`

	// Waves is an ordered partition of invocation ids. Every
	// invocation appears in exactly one wave, and never in a wave
	// earlier than any of its dependencies.
	Waves [][]string `json:"waves"`

	Status      Status `json:"status"`
	CurrentWave int    `json:"current_wave"`
	Adaptations int    `json:"adaptations"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// TotalEstimate is the sum of invocation estimates at build time.
	TotalEstimate time.Duration `json:"total_estimate"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Invocation returns the invocation with the given id, or nil.
func (p *Plan) Invocation(id string) *Invocation {
	for _, inv := range p.Invocations {
		if inv.ID == id {
			return inv
		}
	}
	return nil
}

// Primary returns the invocation with the lowest priority (the one
// built for the classified tool kind), or nil for an empty plan.
func (p *Plan) Primary() *Invocation {
	var best *Invocation
	for _, inv := range p.Invocations {
		if best == nil || inv.Priority < best.Priority {
			best = inv
		}
	}
	return best
}

// CompletedResults returns tool kind and result for every completed
// invocation, in plan order. Used by the synthesis boundary.
func (p *Plan) CompletedResults() []ToolResult {
	var out []ToolResult
	for _, inv := range p.Invocations {
		if inv.Status == StatusCompleted {
			out = append(out, ToolResult{Tool: inv.Tool, Result: inv.Result})
		}
	}
	return out
}

// ToolResult pairs a tool kind with its completed result.
type ToolResult struct {
	Tool   types.ToolKind `json:"tool"`
	Result types.Value    `json:"result"`
}

// AddDiagnostic records a non-fatal condition on the plan.
func (p *Plan) AddDiagnostic(kind DiagnosticKind, format string, args ...any) {
	p.Diagnostics = append(p.Diagnostics, Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

// HasDiagnostic reports whether a diagnostic of the given kind was
// recorded.
func (p *Plan) HasDiagnostic(kind DiagnosticKind) bool {
	for _, d := range p.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// ValidateWaves checks the partition invariants: every invocation id
// appears in exactly one wave, and no invocation is placed earlier
// than any of its dependencies.
func (p *Plan) ValidateWaves() error {
	waveOf := make(map[string]int, len(p.Invocations))
	for i, wave := range p.Waves {
		for _, id := range wave {
			if _, dup := waveOf[id]; dup {
				return fmt.Errorf("invocation %s placed in more than one wave", id)
			}
			if p.Invocation(id) == nil {
				return fmt.Errorf("wave %d references unknown invocation %s", i, id)
			}
			waveOf[id] = i
		}
	}
	for _, inv := range p.Invocations {
		w, ok := waveOf[inv.ID]
		if !ok {
			return fmt.Errorf("invocation %s missing from wave partition", inv.ID)
		}
		for _, dep := range inv.Dependencies {
			dw, ok := waveOf[dep.Source]
			if !ok {
				// Dangling references are tolerated; injection
				// simply leaves the parameter unset.
				continue
			}
			if dw >= w {
				return fmt.Errorf("invocation %s in wave %d not after dependency %s in wave %d",
					inv.ID, w, dep.Source, dw)
			}
		}
	}
	return nil
}
