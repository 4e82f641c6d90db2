package session

import (
	"testing"
	"time"

	"github.com/bmad-method/orchestrator/domain"
)

func TestPhaseElapsed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	if got := PhaseElapsed(nil, now); got != 0 {
		t.Fatalf("nil allocation elapsed = %v", got)
	}

	closed := &domain.TimeAllocation{PhaseID: "ideation", Elapsed: 7 * time.Minute}
	if got := PhaseElapsed(closed, now); got != 7*time.Minute {
		t.Fatalf("closed elapsed = %v", got)
	}

	start := now.Add(-3 * time.Minute)
	open := &domain.TimeAllocation{PhaseID: "ideation", Elapsed: 7 * time.Minute, StartTime: &start}
	if got := PhaseElapsed(open, now); got != 10*time.Minute {
		t.Fatalf("open elapsed = %v, want 10m", got)
	}
}

func TestEstimateRemaining(t *testing.T) {
	nominal := 45 * time.Minute

	// Undefined at 0%: fall back to the nominal pathway duration.
	if got := EstimateRemaining(0, 10*time.Minute, nominal); got != nominal {
		t.Fatalf("remaining at 0%% = %v", got)
	}
	if got := EstimateRemaining(-5, 10*time.Minute, nominal); got != nominal {
		t.Fatalf("remaining below 0%% = %v", got)
	}

	// 25% done in 10 minutes projects 30 more.
	if got := EstimateRemaining(25, 10*time.Minute, nominal); got != 30*time.Minute {
		t.Fatalf("remaining at 25%% = %v", got)
	}

	if got := EstimateRemaining(100, time.Hour, nominal); got != 0 {
		t.Fatalf("remaining at 100%% = %v", got)
	}
}
