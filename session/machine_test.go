package session

import (
	"errors"
	"testing"
	"time"

	"github.com/bmad-method/orchestrator/domain"
)

// fakeClock drives a machine's notion of time in tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMachine(t *testing.T, pathway domain.Pathway) (*Machine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	m, err := newMachine(pathway, "seed idea", "u1", clock.now)
	if err != nil {
		t.Fatalf("newMachine: %v", err)
	}
	return m, clock
}

func TestNewInvalidPathway(t *testing.T) {
	_, err := New("speedrun", "", "u1")
	if !errors.Is(err, domain.ErrInvalidPathway) {
		t.Fatalf("expected ErrInvalidPathway, got %v", err)
	}
}

func TestNewOpensFirstPhase(t *testing.T) {
	m, _ := newTestMachine(t, domain.PathwayNewIdea)
	sess := m.Session()

	if sess.Status != domain.SessionStatusActive {
		t.Fatalf("status = %s", sess.Status)
	}
	if sess.CurrentPhase != "ideation" {
		t.Fatalf("current phase = %s", sess.CurrentPhase)
	}
	assertOneOpenAllocation(t, sess)

	state := m.State()
	if len(state.PathwayHistory) != 1 {
		t.Fatalf("history len = %d", len(state.PathwayHistory))
	}
	if state.PathwayHistory[0].FromPathway != nil {
		t.Fatalf("first transition should have nil from pathway")
	}
	if len(state.SharedContext.UserInputs) != 1 {
		t.Fatalf("seed input not recorded")
	}
}

func TestAdvanceToCompletion(t *testing.T) {
	m, clock := newTestMachine(t, domain.PathwayNewIdea)
	phases := domain.PathwayNewIdea.Phases()

	for range phases {
		clock.advance(10 * time.Minute)
		if err := m.Advance("done with this phase", nil); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	sess := m.Session()
	if sess.Status != domain.SessionStatusCompleted {
		t.Fatalf("status = %s, want completed", sess.Status)
	}
	if sess.Progress.OverallCompletion != 100 {
		t.Fatalf("overall completion = %v, want 100", sess.Progress.OverallCompletion)
	}
	for i := range sess.Allocations {
		if sess.Allocations[i].StartTime != nil {
			t.Fatalf("allocation %s still running after completion", sess.Allocations[i].PhaseID)
		}
	}

	state := m.State()
	if state.Analytics.CompletionRate != 100 {
		t.Fatalf("completion rate = %v", state.Analytics.CompletionRate)
	}

	// Terminal: nothing else is allowed.
	if err := m.Advance("more", nil); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Fatalf("expected ErrSessionTerminal, got %v", err)
	}
}

func TestOverallCompletionStaysInBounds(t *testing.T) {
	m, _ := newTestMachine(t, domain.PathwayBusinessModel)

	for _, ph := range domain.PathwayBusinessModel.Phases() {
		if err := m.SetPhaseCompletion(ph.ID, 100); err != nil {
			t.Fatalf("SetPhaseCompletion(%s): %v", ph.ID, err)
		}
	}

	got := m.Session().Progress.OverallCompletion
	if got != 100 {
		t.Fatalf("overall completion = %v, want exactly 100", got)
	}
}

func TestAdvanceMovesThroughPhasesInOrder(t *testing.T) {
	m, clock := newTestMachine(t, domain.PathwayBusinessModel)
	phases := domain.PathwayBusinessModel.Phases()

	for i := 0; i < len(phases)-1; i++ {
		clock.advance(5 * time.Minute)
		if err := m.Advance("next", nil); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		sess := m.Session()
		if sess.CurrentPhase != phases[i+1].ID {
			t.Fatalf("after advance %d current phase = %s, want %s", i, sess.CurrentPhase, phases[i+1].ID)
		}
		assertOneOpenAllocation(t, sess)
		if sess.Progress.CurrentStep != phases[i+1].Name {
			t.Fatalf("current step = %q", sess.Progress.CurrentStep)
		}
	}
}

func TestAdvanceUnacceptedKeepsPartialCompletion(t *testing.T) {
	m, clock := newTestMachine(t, domain.PathwayNewIdea)
	clock.advance(time.Minute)

	reject := func(phaseID, input string) bool { return false }
	if err := m.Advance("whatever", reject); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	sess := m.Session()
	if sess.Progress.PhaseCompletion["ideation"] != 0 {
		t.Fatalf("rejected phase should stay at 0, got %v", sess.Progress.PhaseCompletion["ideation"])
	}
	if sess.CurrentPhase != "market-exploration" {
		t.Fatalf("advance should still move phases, current = %s", sess.CurrentPhase)
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	m, _ := newTestMachine(t, domain.PathwayNewIdea)

	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := m.Pause(); err != nil {
		t.Fatalf("second Pause should be a no-op: %v", err)
	}
	if m.Session().Status != domain.SessionStatusPaused {
		t.Fatalf("status = %s", m.Session().Status)
	}

	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("second Resume should be a no-op: %v", err)
	}
	if m.Session().Status != domain.SessionStatusActive {
		t.Fatalf("status = %s", m.Session().Status)
	}
}

func TestPauseResumePreservesElapsed(t *testing.T) {
	m, clock := newTestMachine(t, domain.PathwayNewIdea)

	clock.advance(4 * time.Minute)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	before := m.CurrentPhaseElapsed()

	// No wall-clock time passes between pause and resume.
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	after := m.CurrentPhaseElapsed()
	if before != after {
		t.Fatalf("elapsed changed across pause/resume: %v -> %v", before, after)
	}
	if after != 4*time.Minute {
		t.Fatalf("elapsed = %v, want 4m", after)
	}

	// Pause stops the clock entirely.
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.advance(30 * time.Minute)
	if got := m.CurrentPhaseElapsed(); got != 4*time.Minute {
		t.Fatalf("elapsed advanced while paused: %v", got)
	}
}

func TestAdvanceWhilePausedFailsWithoutMutation(t *testing.T) {
	m, _ := newTestMachine(t, domain.PathwayNewIdea)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	before := m.Session()
	err := m.Advance("input", nil)
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	after := m.Session()

	if after.CurrentPhase != before.CurrentPhase || after.Status != before.Status {
		t.Fatalf("failed advance mutated the session: %+v -> %+v", before, after)
	}
	// Only the seed input should be present; the rejected advance must not
	// have recorded anything.
	if got := len(m.State().SharedContext.UserInputs); got != 1 {
		t.Fatalf("failed advance recorded input, len = %d", got)
	}
}

func TestExitIsTerminal(t *testing.T) {
	m, _ := newTestMachine(t, domain.PathwayStrategicOptimization)

	if err := m.Exit(); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if m.Session().Status != domain.SessionStatusAbandoned {
		t.Fatalf("status = %s", m.Session().Status)
	}

	for _, err := range []error{m.Exit(), m.Pause(), m.Resume(), m.Advance("x", nil)} {
		if !errors.Is(err, domain.ErrSessionTerminal) {
			t.Fatalf("expected ErrSessionTerminal, got %v", err)
		}
	}
}

func TestSetPhaseCompletionRecomputesOverall(t *testing.T) {
	m, _ := newTestMachine(t, domain.PathwayNewIdea)

	if err := m.SetPhaseCompletion("ideation", 50); err != nil {
		t.Fatalf("SetPhaseCompletion: %v", err)
	}
	want := domain.PathwayNewIdea.PhaseWeight("ideation") * 50
	got := m.Session().Progress.OverallCompletion
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("overall = %v, want %v", got, want)
	}

	if err := m.SetPhaseCompletion("nope", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemainingTimeHeuristic(t *testing.T) {
	m, clock := newTestMachine(t, domain.PathwayNewIdea)

	// No progress yet: fall back to the pathway's nominal duration.
	nominal := time.Duration(domain.PathwayNewIdea.TotalMinutes()) * time.Minute
	if got := m.RemainingTime(); got != nominal {
		t.Fatalf("remaining at 0%% = %v, want %v", got, nominal)
	}

	// 50% done in 20 minutes projects 20 minutes left.
	clock.advance(20 * time.Minute)
	for phaseID := range m.Session().Progress.PhaseCompletion {
		if err := m.SetPhaseCompletion(phaseID, 50); err != nil {
			t.Fatalf("SetPhaseCompletion: %v", err)
		}
	}
	if got := m.RemainingTime(); got != 20*time.Minute {
		t.Fatalf("remaining at 50%% after 20m = %v, want 20m", got)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m, clock := newTestMachine(t, domain.PathwayNewIdea)
	clock.advance(3 * time.Minute)
	if err := m.Advance("first phase done", nil); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	sess, state := m.Snapshot()
	restored := Restore(sess, state)
	gotSess, gotState := restored.Snapshot()

	if gotSess.CurrentPhase != sess.CurrentPhase || gotSess.Status != sess.Status {
		t.Fatalf("restored session differs: %+v vs %+v", gotSess, sess)
	}
	if gotState.CurrentPathway != state.CurrentPathway || len(gotState.PathwayHistory) != len(state.PathwayHistory) {
		t.Fatalf("restored state differs")
	}
}

func assertOneOpenAllocation(t *testing.T, sess *domain.Session) {
	t.Helper()
	open := 0
	for i := range sess.Allocations {
		if sess.Allocations[i].StartTime != nil {
			open++
			if sess.Allocations[i].PhaseID != sess.CurrentPhase {
				t.Fatalf("open allocation %s does not match current phase %s",
					sess.Allocations[i].PhaseID, sess.CurrentPhase)
			}
		}
	}
	if open != 1 {
		t.Fatalf("open allocations = %d, want exactly 1", open)
	}
}
