package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njmorgan/loom/pkg/types"
)

func inv(id string, kind types.ToolKind, priority int, deps ...Dependency) *Invocation {
	return &Invocation{
		ID:           id,
		Tool:         kind,
		Parameters:   map[string]types.Value{"query": types.String("q")},
		Status:       StatusPending,
		Parallel:     true,
		Priority:     priority,
		Dependencies: deps,
	}
}

func waveSet(waves [][]string) map[string]int {
	out := map[string]int{}
	for i, wave := range waves {
		for _, id := range wave {
			out[id] = i
		}
	}
	return out
}

func TestResolver_PartitionIsExact(t *testing.T) {
	r := NewResolver(nil)
	invs := []*Invocation{
		inv("a", types.ToolWebSearch, 0),
		inv("b", types.ToolKnowledge, 1),
		inv("c", types.ToolIssueTracker, 2),
	}

	waves, diags, err := r.Partition(invs)
	require.NoError(t, err)
	assert.Empty(t, diags)

	// Union of waves equals the invocation set exactly, no duplicates.
	require.Len(t, waves, 1)
	placed := waveSet(waves)
	assert.Len(t, placed, 3)
	for _, i := range invs {
		assert.Contains(t, placed, i.ID)
	}
}

func TestResolver_DependentsPlacedLater(t *testing.T) {
	r := NewResolver(nil)
	invs := []*Invocation{
		inv("a", types.ToolWebSearch, 0),
		inv("b", types.ToolWebScrape, 1, Dependency{Source: "a", Parameter: "url", SourcePath: "results[0].url"}),
		inv("c", types.ToolWebScrape, 2, Dependency{Source: "b", Parameter: "url", SourcePath: "content"}),
	}

	waves, _, err := r.Partition(invs)
	require.NoError(t, err)
	require.Len(t, waves, 3)

	placed := waveSet(waves)
	for _, i := range invs {
		for _, d := range i.Dependencies {
			assert.Less(t, placed[d.Source], placed[i.ID],
				"%s must be placed after its dependency %s", i.ID, d.Source)
		}
	}
}

func TestResolver_ConcreteSearchScrapeScenario(t *testing.T) {
	// Plan = [webSearch(query), webScrape(url from search)].
	// Expected waves = [[search],[scrape]].
	b := NewBuilder(nil)
	search := b.newInvocation("p-inv-1", types.ToolWebSearch, "acme widget", nil, 0)
	scrape := b.newInvocation("p-inv-2", types.ToolWebScrape, "acme widget", nil, 1)

	p := &Plan{ID: "p", Invocations: []*Invocation{search, scrape}}
	r := NewResolver(nil)
	require.NoError(t, r.Resolve(p))

	require.Equal(t, [][]string{{"p-inv-1"}, {"p-inv-2"}}, p.Waves)
	require.Len(t, scrape.Dependencies, 1)
	assert.Equal(t, "p-inv-1", scrape.Dependencies[0].Source)
	assert.Equal(t, "url", scrape.Dependencies[0].Parameter)
	assert.Equal(t, "results[0].url", scrape.Dependencies[0].SourcePath)
	assert.False(t, scrape.Parallel, "dependent invocation must not be marked parallel")
	assert.NoError(t, p.ValidateWaves())
}

func TestResolver_InferenceSkipsWhenParamSet(t *testing.T) {
	r := NewResolver(nil)
	scrape := inv("b", types.ToolWebScrape, 1)
	scrape.Parameters["url"] = types.String("http://already.set")
	invs := []*Invocation{inv("a", types.ToolWebSearch, 0), scrape}

	r.inferDependencies(invs)
	assert.Empty(t, scrape.Dependencies)
	assert.True(t, scrape.Parallel)
}

func TestResolver_DanglingDependencyIsTreatedAsMet(t *testing.T) {
	r := NewResolver(nil)
	invs := []*Invocation{
		inv("a", types.ToolWebScrape, 0, Dependency{Source: "ghost", Parameter: "url", SourcePath: "x"}),
	}

	waves, diags, err := r.Partition(invs)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, [][]string{{"a"}}, waves)
}

func TestResolver_CycleTerminatesWithDiagnostic(t *testing.T) {
	r := NewResolver(nil)
	invs := []*Invocation{
		inv("a", types.ToolWebSearch, 0, Dependency{Source: "b", Parameter: "x", SourcePath: "y"}),
		inv("b", types.ToolWebScrape, 1, Dependency{Source: "a", Parameter: "x", SourcePath: "y"}),
	}

	waves, diags, err := r.Partition(invs)
	require.NoError(t, err)

	// Every invocation still lands in some wave.
	placed := waveSet(waves)
	assert.Len(t, placed, 2)

	// Diagnostic recorded, not silent.
	require.Len(t, diags, 1)
	assert.Equal(t, DiagCyclicDependency, diags[0].Kind)
	assert.ElementsMatch(t, []string{"a", "b"}, diags[0].Invocations)

	// Lowest-priority member was force-scheduled first.
	assert.Equal(t, []string{"a"}, waves[0])
}

func TestResolver_CycleFailPolicy(t *testing.T) {
	r := NewResolver(nil, WithCyclePolicy(CycleFail))
	invs := []*Invocation{
		inv("a", types.ToolWebSearch, 0, Dependency{Source: "b", Parameter: "x", SourcePath: "y"}),
		inv("b", types.ToolWebScrape, 1, Dependency{Source: "a", Parameter: "x", SourcePath: "y"}),
	}

	_, _, err := r.Partition(invs)
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
}

func TestResolver_BestCaseSingleWave(t *testing.T) {
	r := NewResolver(nil)
	var invs []*Invocation
	for _, id := range []string{"a", "b", "c", "d"} {
		invs = append(invs, inv(id, types.ToolWebSearch, 0))
	}

	waves, _, err := r.Partition(invs)
	require.NoError(t, err)
	assert.Len(t, waves, 1)
	assert.Len(t, waves[0], 4)
}
