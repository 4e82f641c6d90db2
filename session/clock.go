// Package session implements the BMad session state machine: pathway and
// phase progression, time accounting, the cross-pathway context store and the
// pathway switch engine.
package session

import (
	"time"

	"github.com/bmad-method/orchestrator/domain"
)

// PhaseElapsed returns the total wall-clock time spent in a phase: the
// accumulated elapsed time plus the open interval when the phase is running.
func PhaseElapsed(a *domain.TimeAllocation, now time.Time) time.Duration {
	if a == nil {
		return 0
	}
	elapsed := a.Elapsed
	if a.StartTime != nil {
		elapsed += now.Sub(*a.StartTime)
	}
	return elapsed
}

// SessionElapsed returns the total wall-clock time spent across all phases.
func SessionElapsed(s *domain.Session, now time.Time) time.Duration {
	var total time.Duration
	for i := range s.Allocations {
		total += PhaseElapsed(&s.Allocations[i], now)
	}
	return total
}

// EstimateRemaining projects the remaining session time from the completion
// ratio and the time actually used:
//
//	remaining = (1 - completion) * used / completion
//
// At zero completion the projection is undefined, so the pathway's nominal
// total duration is used instead. This is a best-effort heuristic, not a
// guarantee.
func EstimateRemaining(overallCompletion float64, used, nominalTotal time.Duration) time.Duration {
	if overallCompletion >= 100 {
		return 0
	}
	if overallCompletion <= 0 {
		return nominalTotal
	}
	frac := overallCompletion / 100
	return time.Duration((1 - frac) * float64(used) / frac)
}
