package engine

import (
	"sync"
	"time"

	"github.com/njmorgan/loom/internal/plan"
)

// Stats tracks execution counters across plans.
type Stats struct {
	mu sync.Mutex

	plansStarted      int64
	plansCompleted    int64
	plansFailed       int64
	invocationsRun    int64
	invocationsFailed int64
	timeouts          int64
	retries           int64
	adaptations       int64
	totalDuration     time.Duration
}

// StatsSnapshot is an immutable copy of the counters.
type StatsSnapshot struct {
	PlansStarted      int64         `json:"plans_started"`
	PlansCompleted    int64         `json:"plans_completed"`
	PlansFailed       int64         `json:"plans_failed"`
	InvocationsRun    int64         `json:"invocations_run"`
	InvocationsFailed int64         `json:"invocations_failed"`
	Timeouts          int64         `json:"timeouts"`
	Retries           int64         `json:"retries"`
	Adaptations       int64         `json:"adaptations"`
	TotalDuration     time.Duration `json:"total_duration"`
}

// SuccessRate returns the completed-plan rate as a percentage.
func (s StatsSnapshot) SuccessRate() float64 {
	finished := s.PlansCompleted + s.PlansFailed
	if finished == 0 {
		return 0
	}
	return float64(s.PlansCompleted) / float64(finished) * 100
}

func (s *Stats) planStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plansStarted++
}

func (s *Stats) planFinished(d time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalDuration += d
	if failed {
		s.plansFailed++
	} else {
		s.plansCompleted++
	}
}

func (s *Stats) invocationCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocationsRun++
}

func (s *Stats) invocationFailed(kind plan.ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocationsRun++
	s.invocationsFailed++
	if kind == plan.ErrKindTimeout {
		s.timeouts++
	}
}

func (s *Stats) retried() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
}

func (s *Stats) adapted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adaptations++
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		PlansStarted:      s.plansStarted,
		PlansCompleted:    s.plansCompleted,
		PlansFailed:       s.plansFailed,
		InvocationsRun:    s.invocationsRun,
		InvocationsFailed: s.invocationsFailed,
		Timeouts:          s.timeouts,
		Retries:           s.retries,
		Adaptations:       s.adaptations,
		TotalDuration:     s.totalDuration,
	}
}
