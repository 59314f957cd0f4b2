// Package tools provides the tool execution service: the registry of
// concrete tool adapters behind the single invoker boundary the
// execution engine calls.
package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/pkg/types"
)

// Tool is one executable capability.
type Tool interface {
	// Kind returns the tool identifier.
	Kind() types.ToolKind

	// Validate checks the parameters before execution.
	Validate(params map[string]types.Value) error

	// Invoke performs the call. The context carries the per-call
	// deadline; implementations must honor it.
	Invoke(ctx context.Context, params map[string]types.Value) (types.Value, error)
}

// ExecutorStats tracks execution metrics across all tools.
type ExecutorStats struct {
	TotalExecutions int64
	SuccessCount    int64
	FailureCount    int64
	TotalDuration   time.Duration

	mu sync.Mutex
}

// SuccessRate returns the success rate as a percentage.
func (s *ExecutorStats) SuccessRate() float64 {
	if s.TotalExecutions == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TotalExecutions) * 100
}

// AvgDuration returns the average execution duration.
func (s *ExecutorStats) AvgDuration() time.Duration {
	if s.TotalExecutions == 0 {
		return 0
	}
	return time.Duration(int64(s.TotalDuration) / s.TotalExecutions)
}

// Executor routes invocations to registered tools. It satisfies the
// engine's invoker boundary.
type Executor struct {
	mu         sync.RWMutex
	tools      map[types.ToolKind]Tool
	maxTimeout time.Duration

	stats ExecutorStats
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithMaxTimeout caps the per-call deadline regardless of what the
// caller's context allows.
func WithMaxTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.maxTimeout = d }
}

// NewExecutor creates an empty tool registry.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		tools:      make(map[types.ToolKind]Tool),
		maxTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a tool. Registering the same kind twice is an error.
func (e *Executor) Register(tool Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	kind := tool.Kind()
	if _, exists := e.tools[kind]; exists {
		return fmt.Errorf("tool %s already registered", kind)
	}
	e.tools[kind] = tool
	return nil
}

// Get returns a registered tool by kind.
func (e *Executor) Get(kind types.ToolKind) (Tool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tool, ok := e.tools[kind]
	return tool, ok
}

// Kinds returns the registered tool kinds.
func (e *Executor) Kinds() []types.ToolKind {
	e.mu.RLock()
	defer e.mu.RUnlock()
	kinds := make([]types.ToolKind, 0, len(e.tools))
	for k := range e.tools {
		kinds = append(kinds, k)
	}
	return kinds
}

// Invoke validates and runs one tool call.
func (e *Executor) Invoke(ctx context.Context, kind types.ToolKind, params map[string]types.Value) (types.Value, error) {
	start := time.Now()

	tool, ok := e.Get(kind)
	if !ok {
		return types.Null(), fmt.Errorf("unknown tool: %s", kind)
	}
	if err := tool.Validate(params); err != nil {
		return types.Null(), fmt.Errorf("%s: %w", kind, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.maxTimeout)
	defer cancel()

	e.stats.mu.Lock()
	e.stats.TotalExecutions++
	e.stats.mu.Unlock()

	result, err := tool.Invoke(callCtx, params)

	e.stats.mu.Lock()
	e.stats.TotalDuration += time.Since(start)
	if err != nil {
		e.stats.FailureCount++
	} else {
		e.stats.SuccessCount++
	}
	e.stats.mu.Unlock()

	if err != nil {
		log.Debug().Str("tool", string(kind)).Err(err).Msg("tool call failed")
		return types.Null(), err
	}
	return result, nil
}

// Stats returns a copy of the execution counters.
func (e *Executor) Stats() ExecutorStats {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	return ExecutorStats{
		TotalExecutions: e.stats.TotalExecutions,
		SuccessCount:    e.stats.SuccessCount,
		FailureCount:    e.stats.FailureCount,
		TotalDuration:   e.stats.TotalDuration,
	}
}

// stringParam extracts a required non-empty string parameter.
func stringParam(params map[string]types.Value, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	s, ok := v.AsString()
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

// intParam extracts an optional integer parameter with a default and
// clamp range.
func intParam(params map[string]types.Value, key string, def, min, max int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	n, ok := v.AsNumber()
	if !ok {
		return def
	}
	i := int(n)
	if i < min {
		i = min
	}
	if i > max {
		i = max
	}
	return i
}
