// Package assistant ties the pipeline together: classify the request,
// build and resolve a plan, execute it, and synthesize the answer.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/njmorgan/loom/internal/bus"
	"github.com/njmorgan/loom/internal/classifier"
	"github.com/njmorgan/loom/internal/engine"
	"github.com/njmorgan/loom/internal/plan"
	"github.com/njmorgan/loom/internal/synth"
)

// Response is the full outcome of one request: the answer plus the
// executed plan for callers that want to show their work. Plan is nil
// when the request needed no tools.
type Response struct {
	Request        string                    `json:"request"`
	Classification classifier.Classification `json:"classification"`
	Plan           *plan.Plan                `json:"plan,omitempty"`
	Answer         *synth.Answer             `json:"answer"`
}

// Assistant runs the classify-plan-execute-synthesize pipeline.
type Assistant struct {
	classifier  *classifier.Classifier
	builder     *plan.Builder
	resolver    *plan.Resolver
	coordinator *engine.Coordinator
	synthesizer *synth.Synthesizer
	events      *bus.Bus // optional
}

// New wires an Assistant from its stages. events may be nil.
func New(
	cls *classifier.Classifier,
	builder *plan.Builder,
	resolver *plan.Resolver,
	coordinator *engine.Coordinator,
	synthesizer *synth.Synthesizer,
	events *bus.Bus,
) *Assistant {
	return &Assistant{
		classifier:  cls,
		builder:     builder,
		resolver:    resolver,
		coordinator: coordinator,
		synthesizer: synthesizer,
		events:      events,
	}
}

// Ask processes one request end to end. A failed plan is not an
// error here: the response carries the partial plan and a degraded
// answer. The returned error covers pipeline-level problems only,
// such as an unresolvable plan.
func (a *Assistant) Ask(ctx context.Context, request string) (*Response, error) {
	a.publish(func(e *bus.Event) {
		e.Type = bus.EventRequestReceived
		e.Content = request
	})

	cls := a.classifier.Classify(request)
	resp := &Response{Request: request, Classification: cls}

	if !cls.ShouldUseTools {
		resp.Answer = a.synthesizer.Chat(ctx, request)
		a.publishAnswer(resp)
		return resp, nil
	}

	p := a.builder.Build(request, cls)
	if err := a.resolver.Resolve(p); err != nil {
		return nil, fmt.Errorf("resolve plan: %w", err)
	}
	resp.Plan = p

	if err := a.coordinator.Execute(ctx, p); err != nil {
		if ctx.Err() != nil {
			return resp, ctx.Err()
		}
		if errors.Is(err, engine.ErrPlanAborted) {
			// Partial results still make an answer.
			log.Debug().Str("plan_id", p.ID).Msg("plan aborted; synthesizing from partial results")
		} else {
			return resp, fmt.Errorf("execute plan: %w", err)
		}
	}

	resp.Answer = a.synthesizer.Synthesize(ctx, request, p)
	a.publishAnswer(resp)
	return resp, nil
}

func (a *Assistant) publish(fill func(*bus.Event)) {
	if a.events == nil {
		return
	}
	event := bus.NewEvent("")
	fill(&event)
	a.events.Publish(event)
}

func (a *Assistant) publishAnswer(resp *Response) {
	a.publish(func(e *bus.Event) {
		e.Type = bus.EventAnswerReady
		if resp.Plan != nil {
			e.PlanID = resp.Plan.ID
		}
		e.Content = resp.Answer.Text
	})
}
