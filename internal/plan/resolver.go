package plan

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// CyclePolicy controls what the resolver does when the dependency
// graph contains a cycle.
type CyclePolicy int

const (
	// CycleForceSchedule breaks the deadlock by force-placing the
	// lowest-priority remaining invocation alone in its own wave,
	// and records a CyclicDependency diagnostic. This is the
	// default.
	CycleForceSchedule CyclePolicy = iota
	// CycleFail aborts resolution with a CycleError instead.
	CycleFail
)

// Resolver infers missing dependency edges from the tool capability
// table and partitions a plan's invocations into waves of
// invocations that may run concurrently.
type Resolver struct {
	profiles Profiles
	policy   CyclePolicy
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCyclePolicy overrides the default force-schedule cycle policy.
func WithCyclePolicy(p CyclePolicy) ResolverOption {
	return func(r *Resolver) {
		r.policy = p
	}
}

// NewResolver creates a Resolver over the given profile table. A nil
// table falls back to the built-in defaults.
func NewResolver(profiles Profiles, opts ...ResolverOption) *Resolver {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	r := &Resolver{profiles: profiles, policy: CycleForceSchedule}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve infers dependencies for the plan's invocations and computes
// the wave partition, storing both back onto the plan. Diagnostics
// (cycle break-ups) are recorded on the plan rather than failing it,
// unless the CycleFail policy is set.
func (r *Resolver) Resolve(p *Plan) error {
	r.inferDependencies(p.Invocations)

	waves, diags, err := r.Partition(p.Invocations)
	if err != nil {
		return err
	}
	p.Waves = waves
	p.Diagnostics = append(p.Diagnostics, diags...)

	log.Debug().
		Str("plan_id", p.ID).
		Int("waves", len(waves)).
		Int("invocations", len(p.Invocations)).
		Msg("plan resolved")
	return nil
}

// inferDependencies adds a dependency edge to every invocation whose
// profile requires input from another tool kind and whose required
// parameter was left unset, when a sibling of that kind exists.
func (r *Resolver) inferDependencies(invocations []*Invocation) {
	for _, inv := range invocations {
		profile := r.profiles[inv.Tool]
		if profile.RequiresFrom == "" || profile.RequiredParam == "" {
			continue
		}
		if v, set := inv.Parameters[profile.RequiredParam]; set && !v.IsNull() {
			continue
		}
		if hasDependencyFor(inv, profile.RequiredParam) {
			continue
		}
		for _, sibling := range invocations {
			if sibling.ID == inv.ID || sibling.Tool != profile.RequiresFrom {
				continue
			}
			inv.Dependencies = append(inv.Dependencies, Dependency{
				Source:     sibling.ID,
				Parameter:  profile.RequiredParam,
				SourcePath: profile.SourcePath,
			})
			inv.Parallel = false
			log.Debug().
				Str("invocation", inv.ID).
				Str("source", sibling.ID).
				Str("parameter", profile.RequiredParam).
				Msg("dependency inferred")
			break
		}
	}
}

func hasDependencyFor(inv *Invocation, param string) bool {
	for _, d := range inv.Dependencies {
		if d.Parameter == param {
			return true
		}
	}
	return false
}

// Partition computes the wave partition for a set of invocations.
//
// Each pass places every not-yet-placed invocation whose dependencies
// are all in earlier waves. Dependencies referencing ids outside the
// set are treated as already met; the parameter is simply left unset
// at injection time. When a pass places nothing (a cycle), the single
// lowest-priority remaining invocation is force-placed alone in its
// own wave so the partition always terminates, and a CyclicDependency
// diagnostic is returned alongside the waves.
func (r *Resolver) Partition(invocations []*Invocation) ([][]string, []Diagnostic, error) {
	known := make(map[string]*Invocation, len(invocations))
	for _, inv := range invocations {
		known[inv.ID] = inv
	}

	placed := make(map[string]bool, len(invocations))
	remaining := len(invocations)
	var waves [][]string
	var diags []Diagnostic

	for remaining > 0 {
		var wave []string
		for _, inv := range invocations {
			if placed[inv.ID] {
				continue
			}
			if r.depsPlaced(inv, known, placed) {
				wave = append(wave, inv.ID)
			}
		}

		if len(wave) == 0 {
			// No progress: a cycle or unresolved reference among the
			// remaining invocations.
			stuck := r.stuckInvocations(invocations, placed)
			if r.policy == CycleFail {
				return nil, nil, r.cycleError(stuck, known, placed)
			}
			forced := stuck[0]
			wave = []string{forced.ID}
			diags = append(diags, Diagnostic{
				Kind: DiagCyclicDependency,
				Message: "dependency cycle detected; force-scheduled " +
					forced.ID + " to guarantee progress",
				Invocations: stuckIDs(stuck),
			})
			log.Warn().
				Str("invocation", forced.ID).
				Strs("stuck", stuckIDs(stuck)).
				Msg("cyclic dependency: force-scheduling to break deadlock")
		}

		sortWave(wave, known)
		waves = append(waves, wave)
		for _, id := range wave {
			placed[id] = true
		}
		remaining -= len(wave)
	}

	return waves, diags, nil
}

// depsPlaced reports whether every dependency of inv that references
// a known invocation is already placed in an earlier wave.
func (r *Resolver) depsPlaced(inv *Invocation, known map[string]*Invocation, placed map[string]bool) bool {
	for _, dep := range inv.Dependencies {
		if _, exists := known[dep.Source]; !exists {
			continue
		}
		if !placed[dep.Source] {
			return false
		}
	}
	return true
}

// stuckInvocations returns the unplaced invocations sorted by
// priority then id, so the force-schedule choice is deterministic.
func (r *Resolver) stuckInvocations(invocations []*Invocation, placed map[string]bool) []*Invocation {
	var stuck []*Invocation
	for _, inv := range invocations {
		if !placed[inv.ID] {
			stuck = append(stuck, inv)
		}
	}
	sort.SliceStable(stuck, func(i, j int) bool {
		if stuck[i].Priority != stuck[j].Priority {
			return stuck[i].Priority < stuck[j].Priority
		}
		return stuck[i].ID < stuck[j].ID
	})
	return stuck
}

// cycleError builds a CycleError with the cycle path reconstructed
// from the stuck subgraph.
func (r *Resolver) cycleError(stuck []*Invocation, known map[string]*Invocation, placed map[string]bool) error {
	g := newDepGraph()
	for _, inv := range stuck {
		g.addNode(inv.ID)
		for _, dep := range inv.Dependencies {
			if _, exists := known[dep.Source]; exists && !placed[dep.Source] {
				g.addEdge(inv.ID, dep.Source)
			}
		}
	}
	if found, path := g.hasCycle(); found {
		return &CycleError{Path: path}
	}
	return &CycleError{Path: stuckIDs(stuck)}
}

func stuckIDs(stuck []*Invocation) []string {
	ids := make([]string, 0, len(stuck))
	for _, inv := range stuck {
		ids = append(ids, inv.ID)
	}
	return ids
}

// sortWave orders a wave by priority then id for deterministic
// dispatch order.
func sortWave(wave []string, known map[string]*Invocation) {
	sort.SliceStable(wave, func(i, j int) bool {
		a, b := known[wave[i]], known[wave[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return strings.Compare(a.ID, b.ID) < 0
	})
}
