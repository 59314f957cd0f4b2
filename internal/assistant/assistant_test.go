package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njmorgan/loom/internal/bus"
	"github.com/njmorgan/loom/internal/classifier"
	"github.com/njmorgan/loom/internal/engine"
	"github.com/njmorgan/loom/internal/plan"
	"github.com/njmorgan/loom/internal/synth"
	"github.com/njmorgan/loom/pkg/types"
)

type recordingInvoker struct {
	calls   []types.ToolKind
	handler func(kind types.ToolKind, params map[string]types.Value) (types.Value, error)
}

func (r *recordingInvoker) Invoke(ctx context.Context, kind types.ToolKind, params map[string]types.Value) (types.Value, error) {
	r.calls = append(r.calls, kind)
	if r.handler != nil {
		return r.handler(kind, params)
	}
	return types.String("ok"), nil
}

func newTestAssistant(invoker engine.ToolInvoker, events *bus.Bus, opts ...engine.Option) *Assistant {
	return New(
		classifier.New(),
		plan.NewBuilder(nil),
		plan.NewResolver(nil),
		engine.NewCoordinator(invoker, opts...),
		synth.NewSynthesizer(nil),
		events,
	)
}

func TestAsk_SmallTalkSkipsPlanning(t *testing.T) {
	invoker := &recordingInvoker{}
	a := newTestAssistant(invoker, nil)

	resp, err := a.Ask(context.Background(), "hello")
	require.NoError(t, err)

	assert.False(t, resp.Classification.ShouldUseTools)
	assert.Nil(t, resp.Plan)
	require.NotNil(t, resp.Answer)
	assert.NotEmpty(t, resp.Answer.Text)
	assert.Empty(t, invoker.calls, "small talk must not invoke tools")
}

func TestAsk_RunsPlanAndAnswers(t *testing.T) {
	invoker := &recordingInvoker{}
	a := newTestAssistant(invoker, nil)

	resp, err := a.Ask(context.Background(), "search for the latest Go release")
	require.NoError(t, err)

	require.NotNil(t, resp.Plan)
	assert.Equal(t, plan.StatusCompleted, resp.Plan.Status)
	assert.Contains(t, invoker.calls, types.ToolWebSearch)
	require.NotNil(t, resp.Answer)
	assert.NotEmpty(t, resp.Answer.Text)
}

func TestAsk_AbortedPlanStillAnswers(t *testing.T) {
	invoker := &recordingInvoker{
		handler: func(kind types.ToolKind, params map[string]types.Value) (types.Value, error) {
			return types.Value{}, errors.New("upstream down")
		},
	}
	a := newTestAssistant(invoker, nil)

	resp, err := a.Ask(context.Background(), "search for the latest Go release")
	require.NoError(t, err, "an aborted plan is answered from partial results, not surfaced")

	require.NotNil(t, resp.Plan)
	assert.Equal(t, plan.StatusFailed, resp.Plan.Status)
	require.NotNil(t, resp.Answer)
	assert.True(t, resp.Answer.Degraded)
	assert.NotEmpty(t, resp.Answer.Text)
}

func TestAsk_CancelledContextReturnsError(t *testing.T) {
	started := make(chan struct{})
	var startedOnce sync.Once
	ctx, cancel := context.WithCancel(context.Background())
	invoker := &recordingInvoker{
		handler: func(kind types.ToolKind, params map[string]types.Value) (types.Value, error) {
			startedOnce.Do(func() { close(started) })
			<-ctx.Done()
			return types.Value{}, ctx.Err()
		},
	}
	a := newTestAssistant(invoker, nil)

	go func() {
		<-started
		cancel()
	}()

	resp, err := a.Ask(ctx, "search for the latest Go release")
	require.Error(t, err)
	require.NotNil(t, resp, "the partial plan comes back alongside the error")
	assert.NotNil(t, resp.Plan)
}

func TestAsk_PublishesRequestAndAnswerEvents(t *testing.T) {
	events := bus.New()
	defer events.Close()

	var mu sync.Mutex
	var seen []bus.Event
	events.Subscribe("", func(e bus.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})

	invoker := &recordingInvoker{}
	a := newTestAssistant(invoker, events)

	resp, err := a.Ask(context.Background(), "search for the latest Go release")
	require.NoError(t, err)

	var request, answer *bus.Event
	deadline := time.After(2 * time.Second)
	for request == nil || answer == nil {
		select {
		case <-deadline:
			t.Fatal("expected request and answer events on the bus")
		case <-time.After(5 * time.Millisecond):
		}
		mu.Lock()
		for i := range seen {
			switch seen[i].Type {
			case bus.EventRequestReceived:
				request = &seen[i]
			case bus.EventAnswerReady:
				answer = &seen[i]
			}
		}
		mu.Unlock()
	}

	assert.Equal(t, "search for the latest Go release", request.Content)
	assert.Equal(t, resp.Plan.ID, answer.PlanID)
	assert.Equal(t, resp.Answer.Text, answer.Content)
}
