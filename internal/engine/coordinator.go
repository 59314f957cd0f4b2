// Package engine runs execution plans: waves in order, invocations
// within a wave concurrently, with cross-step parameter injection,
// adaptive replanning between waves, and an explicit failure policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/plan"
	"github.com/njmorgan/loom/pkg/types"
)

// ErrPlanAborted is returned when the strict failure policy stops a
// plan after a failed invocation. The plan itself, with all partial
// results, remains available to the caller.
var ErrPlanAborted = errors.New("plan aborted")

// ToolInvoker is the external Tool Execution Service boundary. The
// context carries both the per-call timeout and plan-level
// cancellation; implementations must honor it.
type ToolInvoker interface {
	Invoke(ctx context.Context, kind types.ToolKind, params map[string]types.Value) (types.Value, error)
}

// UpdateFunc observes every status transition. inv is nil for
// plan-level transitions. Called synchronously from the coordinating
// goroutine; implementations must not block.
type UpdateFunc func(p *plan.Plan, inv *plan.Invocation)

// FailurePolicy controls what happens when an invocation fails.
type FailurePolicy int

const (
	// FailFast aborts the remainder of the plan as soon as any
	// invocation in a wave fails. This is the default.
	FailFast FailurePolicy = iota
	// BestEffort keeps executing subsequent waves with whatever
	// context the completed invocations produced.
	BestEffort
)

// RetryPolicy is a bounded per-tool-kind retry configuration.
// Zero Attempts means no retries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

const (
	// DefaultCallTimeout bounds a single tool call.
	DefaultCallTimeout = 30 * time.Second
	// DefaultMaxAdaptations caps replanner-triggered plan growth.
	DefaultMaxAdaptations = 3
)

// Coordinator drives a plan through its waves. A single coordinating
// goroutine owns all plan and ContextMemory mutation; worker
// goroutines only perform the tool calls.
//
// Within a wave every invocation is dispatched concurrently; there is
// no additional global in-flight cap beyond the wave size. A
// production deployment fronting rate-limited tool APIs would want a
// semaphore over total in-flight calls on top of this.
type Coordinator struct {
	invoker        ToolInvoker
	replanner      Replanner
	policy         FailurePolicy
	maxAdaptations int
	callTimeout    time.Duration
	retry          map[types.ToolKind]RetryPolicy
	onUpdate       UpdateFunc
	stats          Stats
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithFailurePolicy selects FailFast or BestEffort.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithReplanner sets the adaptive replanner consulted between waves.
func WithReplanner(r Replanner) Option {
	return func(c *Coordinator) { c.replanner = r }
}

// WithMaxAdaptations caps how many times the replanner may grow the
// plan. Once reached the replanner is no longer consulted.
func WithMaxAdaptations(n int) Option {
	return func(c *Coordinator) { c.maxAdaptations = n }
}

// WithCallTimeout sets the per-call timeout imposed on every tool
// invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.callTimeout = d }
}

// WithRetryPolicy sets a bounded retry policy for one tool kind.
func WithRetryPolicy(kind types.ToolKind, p RetryPolicy) Option {
	return func(c *Coordinator) { c.retry[kind] = p }
}

// WithUpdateFunc sets the observability sink for status transitions.
func WithUpdateFunc(fn UpdateFunc) Option {
	return func(c *Coordinator) { c.onUpdate = fn }
}

// NewCoordinator creates a Coordinator over the given tool invoker.
func NewCoordinator(invoker ToolInvoker, opts ...Option) *Coordinator {
	c := &Coordinator{
		invoker:        invoker,
		policy:         FailFast,
		maxAdaptations: DefaultMaxAdaptations,
		callTimeout:    DefaultCallTimeout,
		retry:          make(map[types.ToolKind]RetryPolicy),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns a snapshot of execution counters.
func (c *Coordinator) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// callResult carries one worker's outcome back to the coordinator.
type callResult struct {
	value types.Value
	err   error
}

// Execute runs the plan to completion or failure, mutating it in
// place. The returned error is ErrPlanAborted (wrapped) under the
// strict policy, the context error on cancellation, or nil. The plan
// always carries whatever partial results were produced.
func (c *Coordinator) Execute(ctx context.Context, p *plan.Plan) error {
	start := time.Now()
	memory := plan.NewContextMemory()

	c.stats.planStarted()
	c.transitionPlan(p, plan.StatusExecuting)

	for waveIdx := 0; waveIdx < len(p.Waves); waveIdx++ {
		p.CurrentWave = waveIdx

		if err := ctx.Err(); err != nil {
			c.abortPending(p, "plan cancelled")
			c.failPlan(p, start)
			return err
		}

		wave := c.waveInvocations(p, waveIdx)
		if len(wave) == 0 {
			continue
		}

		// Inject upstream results before anything in the wave is
		// marked Executing. Unresolvable paths are a soft failure:
		// the parameter stays unset and the invocation still runs.
		for _, inv := range wave {
			c.injectParameters(inv, memory)
		}

		for _, inv := range wave {
			now := time.Now()
			inv.StartedAt = &now
			inv.Status = plan.StatusExecuting
			c.update(p, inv)
		}

		log.Debug().
			Str("plan_id", p.ID).
			Int("wave", waveIdx).
			Int("size", len(wave)).
			Msg("dispatching wave")

		results := c.dispatch(ctx, wave)

		// Settle the wave on the coordinating goroutine: statuses,
		// ContextMemory, and observers all see a consistent order.
		waveFailed := false
		for i, inv := range wave {
			now := time.Now()
			inv.EndedAt = &now
			res := results[i]
			if res.err != nil {
				inv.Status = plan.StatusFailed
				inv.Error = res.err.Error()
				inv.ErrKind = classifyError(res.err)
				waveFailed = true
				c.stats.invocationFailed(inv.ErrKind)
			} else {
				inv.Status = plan.StatusCompleted
				inv.Result = res.value
				memory.Store(inv)
				c.stats.invocationCompleted()
			}
			c.update(p, inv)
		}

		if waveFailed && c.policy == FailFast {
			c.abortPending(p, "aborted: earlier wave failed")
			c.failPlan(p, start)
			return fmt.Errorf("wave %d: %w", waveIdx, ErrPlanAborted)
		}

		c.maybeReplan(p, waveIdx)
	}

	now := time.Now()
	p.EndedAt = &now
	c.stats.planFinished(time.Since(start), false)
	c.transitionPlan(p, plan.StatusCompleted)
	return nil
}

// waveInvocations resolves a wave's ids to invocations, skipping ids
// that no longer resolve (these indicate a corrupted partition and
// are logged, not fatal).
func (c *Coordinator) waveInvocations(p *plan.Plan, waveIdx int) []*plan.Invocation {
	ids := p.Waves[waveIdx]
	out := make([]*plan.Invocation, 0, len(ids))
	for _, id := range ids {
		inv := p.Invocation(id)
		if inv == nil {
			log.Error().Str("plan_id", p.ID).Str("invocation", id).Msg("wave references unknown invocation")
			continue
		}
		if inv.Status != plan.StatusPending {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// injectParameters populates an invocation's parameters from its
// dependency edges. A path that does not resolve leaves the target
// parameter unset; the invocation is dispatched regardless.
func (c *Coordinator) injectParameters(inv *plan.Invocation, memory *plan.ContextMemory) {
	for _, dep := range inv.Dependencies {
		source, ok := memory.ResultFor(dep.Source)
		if !ok {
			log.Debug().
				Str("invocation", inv.ID).
				Str("source", dep.Source).
				Msg("dependency source has no stored result; parameter left unset")
			continue
		}
		value, ok := source.At(dep.SourcePath)
		if !ok {
			log.Debug().
				Str("invocation", inv.ID).
				Str("source", dep.Source).
				Str("path", dep.SourcePath).
				Msg("dependency path unresolved; parameter left unset")
			continue
		}
		if inv.Parameters == nil {
			inv.Parameters = make(map[string]types.Value)
		}
		inv.Parameters[dep.Parameter] = value
	}
}

// dispatch fans the wave out to worker goroutines and blocks until
// every call settles. Results come back positionally.
func (c *Coordinator) dispatch(ctx context.Context, wave []*plan.Invocation) []callResult {
	results := make([]callResult, len(wave))
	var wg sync.WaitGroup
	for i, inv := range wave {
		wg.Add(1)
		go func(i int, inv *plan.Invocation) {
			defer wg.Done()
			results[i] = c.invokeWithRetry(ctx, inv)
		}(i, inv)
	}
	wg.Wait()
	return results
}

// invokeWithRetry performs one tool call under the per-call timeout,
// with the tool kind's bounded retry policy if one is configured.
// Cancellation is never retried.
func (c *Coordinator) invokeWithRetry(ctx context.Context, inv *plan.Invocation) callResult {
	policy := c.retry[inv.Tool]
	attempts := policy.Attempts + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.stats.retried()
			select {
			case <-ctx.Done():
				return callResult{err: ctx.Err()}
			case <-time.After(policy.Backoff * time.Duration(attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		value, err := c.invoker.Invoke(callCtx, inv.Tool, inv.Parameters)
		cancel()

		if err == nil {
			return callResult{value: value}
		}
		lastErr = err
		if ctx.Err() != nil {
			// Plan-level cancellation; stop immediately.
			return callResult{err: ctx.Err()}
		}
	}
	return callResult{err: lastErr}
}

// maybeReplan consults the replanner with the finished wave and, when
// it proposes new invocations, appends them as one trailing wave.
func (c *Coordinator) maybeReplan(p *plan.Plan, waveIdx int) {
	if c.replanner == nil || p.Adaptations >= c.maxAdaptations {
		return
	}
	added := c.replanner.Assess(p, p.Waves[waveIdx])
	if len(added) == 0 {
		return
	}

	ids := make([]string, 0, len(added))
	for _, inv := range added {
		inv.Status = plan.StatusPending
		p.Invocations = append(p.Invocations, inv)
		p.TotalEstimate += inv.Estimate
		ids = append(ids, inv.ID)
	}
	p.Waves = append(p.Waves, ids)
	p.Adaptations++
	c.stats.adapted()

	log.Info().
		Str("plan_id", p.ID).
		Int("added", len(added)).
		Int("adaptations", p.Adaptations).
		Msg("plan adapted")
	c.update(p, nil)
}

// abortPending marks every still-pending invocation as failed with
// the plan_aborted kind so callers can see exactly what never ran.
func (c *Coordinator) abortPending(p *plan.Plan, reason string) {
	for _, inv := range p.Invocations {
		if inv.Status == plan.StatusPending {
			inv.Status = plan.StatusFailed
			inv.Error = reason
			inv.ErrKind = plan.ErrKindAborted
			c.update(p, inv)
		}
	}
}

func (c *Coordinator) failPlan(p *plan.Plan, start time.Time) {
	now := time.Now()
	p.EndedAt = &now
	c.stats.planFinished(time.Since(start), true)
	c.transitionPlan(p, plan.StatusFailed)
}

func (c *Coordinator) transitionPlan(p *plan.Plan, status plan.Status) {
	if status == plan.StatusExecuting && p.StartedAt == nil {
		now := time.Now()
		p.StartedAt = &now
	}
	p.Status = status
	c.update(p, nil)
}

func (c *Coordinator) update(p *plan.Plan, inv *plan.Invocation) {
	if c.onUpdate != nil {
		c.onUpdate(p, inv)
	}
}

// classifyError maps a call error to the invocation error taxonomy.
func classifyError(err error) plan.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return plan.ErrKindTimeout
	case errors.Is(err, context.Canceled):
		return plan.ErrKindAborted
	default:
		return plan.ErrKindFailure
	}
}
