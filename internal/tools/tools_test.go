package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njmorgan/loom/pkg/types"
)

type stubTool struct {
	kind        types.ToolKind
	validateErr error
	result      types.Value
	err         error
}

func (s *stubTool) Kind() types.ToolKind { return s.kind }
func (s *stubTool) Validate(map[string]types.Value) error {
	return s.validateErr
}
func (s *stubTool) Invoke(context.Context, map[string]types.Value) (types.Value, error) {
	return s.result, s.err
}

func TestExecutor_RegisterAndInvoke(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(&stubTool{
		kind:   types.ToolWebSearch,
		result: types.String("ok"),
	}))

	got, err := e.Invoke(context.Background(), types.ToolWebSearch, nil)
	require.NoError(t, err)
	s, _ := got.AsString()
	assert.Equal(t, "ok", s)

	assert.Contains(t, e.Kinds(), types.ToolWebSearch)
}

func TestExecutor_DuplicateRegistration(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(&stubTool{kind: types.ToolWebSearch}))
	assert.Error(t, e.Register(&stubTool{kind: types.ToolWebSearch}))
}

func TestExecutor_UnknownTool(t *testing.T) {
	e := NewExecutor()
	_, err := e.Invoke(context.Background(), types.ToolWebScrape, nil)
	assert.ErrorContains(t, err, "unknown tool")
}

func TestExecutor_ValidationFailureSkipsInvoke(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(&stubTool{
		kind:        types.ToolWebSearch,
		validateErr: errors.New("missing query"),
	}))

	_, err := e.Invoke(context.Background(), types.ToolWebSearch, nil)
	assert.ErrorContains(t, err, "missing query")

	// Validation failures are not executions.
	assert.Equal(t, int64(0), e.Stats().TotalExecutions)
}

func TestExecutor_StatsTrackOutcomes(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(&stubTool{kind: types.ToolWebSearch, result: types.Null()}))
	require.NoError(t, e.Register(&stubTool{kind: types.ToolWebScrape, err: errors.New("boom")}))

	_, _ = e.Invoke(context.Background(), types.ToolWebSearch, nil)
	_, _ = e.Invoke(context.Background(), types.ToolWebScrape, nil)

	stats := e.Stats()
	assert.Equal(t, int64(2), stats.TotalExecutions)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.FailureCount)
	assert.Equal(t, float64(50), stats.SuccessRate())
}

func TestCache_SetGetExpiry(t *testing.T) {
	c := NewCache(10, 20*time.Millisecond)
	key := c.Key("  Some Query ")
	assert.Equal(t, c.Key("some query"), key)

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, types.String("cached"))
	v, ok := c.Get(key)
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "cached", s)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry must expire after the TTL")
}

func TestCache_EvictsWhenFull(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Set("a", types.Int(1))
	c.Set("b", types.Int(2))
	c.Set("c", types.Int(3))
	assert.Equal(t, 2, c.Len())
}

func TestRepoSlug(t *testing.T) {
	params := map[string]types.Value{
		"entities": types.Array(types.String("quoted phrase"), types.String("golang/go")),
	}
	assert.Equal(t, "golang/go", repoSlug(params))

	assert.Equal(t, "", repoSlug(map[string]types.Value{}))
	assert.Equal(t, "", repoSlug(map[string]types.Value{
		"entities": types.Array(types.String("not a slug")),
	}))
}

func TestParamHelpers(t *testing.T) {
	params := map[string]types.Value{
		"query": types.String("hello"),
		"limit": types.Int(50),
	}

	q, err := stringParam(params, "query")
	require.NoError(t, err)
	assert.Equal(t, "hello", q)

	_, err = stringParam(params, "absent")
	assert.Error(t, err)

	assert.Equal(t, 30, intParam(params, "limit", 10, 1, 30), "clamped to max")
	assert.Equal(t, 10, intParam(params, "absent", 10, 1, 30))
}
