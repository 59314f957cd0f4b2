package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/plan"
	"github.com/njmorgan/loom/pkg/types"
)

// Replanner inspects a plan after each wave and may propose
// additional invocations. Proposed invocations must be
// self-sufficient: no dependencies, safe to run in parallel.
type Replanner interface {
	Assess(p *plan.Plan, wave []string) []*plan.Invocation
}

// DefaultMinResultLength is the result-size threshold below which the
// heuristic replanner considers the primary result insufficient.
const DefaultMinResultLength = 40

// HeuristicReplanner adds a knowledge-base lookup when the plan's
// primary invocation completed with an empty or too-short result and
// no knowledge lookup exists yet.
type HeuristicReplanner struct {
	profiles        plan.Profiles
	MinResultLength int
}

// NewHeuristicReplanner creates the default replanner. A nil profile
// table falls back to the built-in defaults.
func NewHeuristicReplanner(profiles plan.Profiles) *HeuristicReplanner {
	if profiles == nil {
		profiles = plan.DefaultProfiles()
	}
	return &HeuristicReplanner{
		profiles:        profiles,
		MinResultLength: DefaultMinResultLength,
	}
}

// Assess implements Replanner.
func (r *HeuristicReplanner) Assess(p *plan.Plan, wave []string) []*plan.Invocation {
	primary := p.Primary()
	if primary == nil || primary.Status != plan.StatusCompleted {
		return nil
	}
	if !contains(wave, primary.ID) {
		// Only react to the wave that actually produced the primary
		// result.
		return nil
	}
	if len(primary.Result.Text()) >= r.MinResultLength {
		return nil
	}
	for _, inv := range p.Invocations {
		if inv.Tool == types.ToolKnowledge {
			return nil
		}
	}

	profile := r.profiles[types.ToolKnowledge]
	params := make(map[string]types.Value, len(profile.DefaultParams)+1)
	for k, v := range profile.DefaultParams {
		params[k] = v
	}
	if q, ok := primary.Parameters["query"]; ok {
		params["query"] = q
	}

	added := &plan.Invocation{
		ID:         fmt.Sprintf("%s-inv-%d", p.ID[:8], len(p.Invocations)+1),
		Tool:       types.ToolKnowledge,
		Parameters: params,
		Status:     plan.StatusPending,
		Parallel:   true,
		Priority:   100,
		Estimate:   profile.Estimate,
	}

	log.Info().
		Str("plan_id", p.ID).
		Str("primary", primary.ID).
		Int("result_len", len(primary.Result.Text())).
		Msg("primary result insufficient; proposing knowledge lookup")
	return []*plan.Invocation{added}
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
