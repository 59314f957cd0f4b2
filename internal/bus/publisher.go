package bus

import (
	"github.com/njmorgan/loom/internal/plan"
)

// UpdatePublisher bridges the engine's status-transition hook onto
// the bus. Pass the returned function to the coordinator's update
// option.
func UpdatePublisher(b *Bus) func(p *plan.Plan, inv *plan.Invocation) {
	return func(p *plan.Plan, inv *plan.Invocation) {
		if inv == nil {
			publishPlanEvent(b, p)
			return
		}
		publishInvocationEvent(b, p, inv)
	}
}

func publishPlanEvent(b *Bus, p *plan.Plan) {
	var eventType EventType
	switch p.Status {
	case plan.StatusExecuting:
		// A mid-run transition back to executing means the plan grew.
		if p.Adaptations > 0 {
			eventType = EventPlanAdapted
		} else {
			eventType = EventPlanStarted
		}
	case plan.StatusCompleted:
		eventType = EventPlanCompleted
	case plan.StatusFailed:
		eventType = EventPlanFailed
	default:
		return
	}

	event := NewEvent(eventType)
	event.PlanID = p.ID
	event.Wave = p.CurrentWave
	if p.StartedAt != nil && p.EndedAt != nil {
		event.DurationMs = p.EndedAt.Sub(*p.StartedAt).Milliseconds()
	}
	b.Publish(event)
}

func publishInvocationEvent(b *Bus, p *plan.Plan, inv *plan.Invocation) {
	var eventType EventType
	switch inv.Status {
	case plan.StatusExecuting:
		eventType = EventInvocationStarted
	case plan.StatusCompleted:
		eventType = EventInvocationCompleted
	case plan.StatusFailed:
		eventType = EventInvocationFailed
	default:
		return
	}

	event := NewEvent(eventType)
	event.PlanID = p.ID
	event.InvocationID = inv.ID
	event.Tool = string(inv.Tool)
	event.Wave = p.CurrentWave
	event.Error = inv.Error
	event.DurationMs = inv.Duration().Milliseconds()
	b.Publish(event)
}
