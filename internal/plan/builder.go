package plan

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/classifier"
	"github.com/njmorgan/loom/pkg/types"
)

// Builder composes classifier output and the static tool profile
// table into an initial Plan. It never executes anything.
type Builder struct {
	profiles Profiles
}

// NewBuilder creates a Builder over the given profile table. A nil
// table falls back to the built-in defaults.
func NewBuilder(profiles Profiles) *Builder {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Builder{profiles: profiles}
}

// Build produces a Plan with a primary invocation for the classified
// tool kind plus the profile's complementary invocations. Invocation
// ids are deterministic within the plan: <plan-prefix>-inv-<seq>.
func (b *Builder) Build(request string, cls classifier.Classification) *Plan {
	planID := uuid.NewString()
	p := &Plan{
		ID:          planID,
		Title:       planTitle(request),
		Description: fmt.Sprintf("Resolve %q using %s", truncate(request, 120), cls.Tool),
		Status:      StatusPending,
	}

	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("%s-inv-%d", planID[:8], seq)
	}

	primary := b.newInvocation(nextID(), cls.Tool, request, cls.Entities, 0)
	p.Invocations = append(p.Invocations, primary)

	// Complementary invocations come from the declarative table, run
	// at a lower priority, and reuse the same query text.
	for i, kind := range b.profiles[cls.Tool].Complements {
		if kind == cls.Tool {
			continue
		}
		comp := b.newInvocation(nextID(), kind, request, cls.Entities, 10+i)
		p.Invocations = append(p.Invocations, comp)
	}

	for _, inv := range p.Invocations {
		p.TotalEstimate += inv.Estimate
	}

	log.Debug().
		Str("plan_id", p.ID).
		Int("invocations", len(p.Invocations)).
		Str("primary_tool", string(cls.Tool)).
		Msg("plan built")
	return p
}

// newInvocation creates one pending invocation seeded from the tool
// profile's defaults.
func (b *Builder) newInvocation(id string, kind types.ToolKind, request string, entities []string, priority int) *Invocation {
	profile := b.profiles[kind]

	params := make(map[string]types.Value, len(profile.DefaultParams)+2)
	for k, v := range profile.DefaultParams {
		params[k] = v
	}
	params["query"] = types.String(request)
	if len(entities) > 0 {
		vals := make([]types.Value, 0, len(entities))
		for _, e := range entities {
			vals = append(vals, types.String(e))
		}
		params["entities"] = types.Array(vals...)
	}

	return &Invocation{
		ID:         id,
		Tool:       kind,
		Parameters: params,
		Status:     StatusPending,
		Parallel:   profile.Parallel,
		Priority:   priority,
		Estimate:   profile.Estimate,
	}
}

// planTitle derives a short human-readable title from the request.
func planTitle(request string) string {
	title := strings.TrimSpace(request)
	title = strings.Join(strings.Fields(title), " ")
	return truncate(title, 60)
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
