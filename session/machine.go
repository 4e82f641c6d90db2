package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bmad-method/orchestrator/domain"
)

// AcceptanceFunc decides whether a phase's acceptance criteria are met for
// the given user input. The criteria themselves are external to this core.
type AcceptanceFunc func(phaseID, userInput string) bool

// DefaultAcceptance accepts any non-empty input.
func DefaultAcceptance(phaseID, userInput string) bool {
	return strings.TrimSpace(userInput) != ""
}

// Machine owns one session's state: the per-pathway Session view and the
// cross-pathway UniversalSessionState. Every operation runs as an atomic
// critical section under the machine's lock; operations that return an error
// leave both structures untouched. A machine is exclusive to its session and
// is never shared across sessions.
type Machine struct {
	mu    sync.RWMutex
	sess  *domain.Session
	state *domain.UniversalSessionState

	now func() time.Time
}

// New creates a session on the given pathway, opening the first phase's time
// allocation and seeding the universal state with the initial transition.
func New(pathway domain.Pathway, seedInput, userID string) (*Machine, error) {
	return newMachine(pathway, seedInput, userID, time.Now)
}

// newMachine takes the clock explicitly so the first allocation is stamped
// with the same source of time every later operation reads.
func newMachine(pathway domain.Pathway, seedInput, userID string, now func() time.Time) (*Machine, error) {
	if !pathway.Valid() {
		return nil, domain.ErrInvalidPathway
	}

	m := &Machine{now: now}
	start := m.now()

	sess := &domain.Session{
		SessionID:    "sess_" + uuid.New().String()[:8],
		UserID:       userID,
		Pathway:      pathway,
		CurrentPhase: pathway.FirstPhase().ID,
		Status:       domain.SessionStatusActive,
		StartTime:    start,
		Allocations:  newAllocations(pathway, start),
		Progress:     newProgress(pathway),
	}

	state := &domain.UniversalSessionState{
		SessionID:      sess.SessionID,
		CurrentPathway: pathway,
		PathwayHistory: []domain.PathwayTransition{{
			ToPathway: pathway,
			Reason:    domain.TransitionReasonUserChoice,
			Timestamp: start,
		}},
		GlobalProgress: domain.GlobalProgress{
			PathwayCompletions: map[domain.Pathway]float64{pathway: 0},
			TimeSpent:          map[domain.Pathway]time.Duration{pathway: 0},
		},
	}
	if strings.TrimSpace(seedInput) != "" {
		state.SharedContext.UserInputs = append(state.SharedContext.UserInputs, domain.ContextItem{
			Text:      seedInput,
			Pathway:   pathway,
			CreatedAt: start,
		})
	}

	m.sess = sess
	m.state = state
	return m, nil
}

// Restore rebuilds a machine from persisted state.
func Restore(sess *domain.Session, state *domain.UniversalSessionState) *Machine {
	return &Machine{
		sess:  sess.Clone(),
		state: state.Clone(),
		now:   time.Now,
	}
}

func newAllocations(pathway domain.Pathway, start time.Time) []domain.TimeAllocation {
	phases := pathway.Phases()
	allocs := make([]domain.TimeAllocation, len(phases))
	for i, ph := range phases {
		allocs[i] = domain.TimeAllocation{PhaseID: ph.ID, AllocatedMinutes: ph.Minutes}
	}
	t := start
	allocs[0].StartTime = &t
	return allocs
}

func newProgress(pathway domain.Pathway) domain.Progress {
	phases := pathway.Phases()
	completion := make(map[string]float64, len(phases))
	steps := make([]string, 0, len(phases)-1)
	for i, ph := range phases {
		completion[ph.ID] = 0
		if i > 0 {
			steps = append(steps, ph.Name)
		}
	}
	return domain.Progress{
		PhaseCompletion: completion,
		CurrentStep:     phases[0].Name,
		NextSteps:       steps,
	}
}

// Session returns a deep copy of the per-pathway session view.
func (m *Machine) Session() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.Clone()
}

// State returns a deep copy of the universal session state.
func (m *Machine) State() *domain.UniversalSessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Snapshot returns consistent copies of both views, taken under one read
// lock so the periodic sync never captures a torn state mid-transition.
func (m *Machine) Snapshot() (*domain.Session, *domain.UniversalSessionState) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.Clone(), m.state.Clone()
}

// Advance finishes the current phase and opens the next one. The finished
// phase's completion is set to 100 when the acceptance predicate passes
// (nil means DefaultAcceptance). When no phase remains the session
// completes and every allocation is frozen.
func (m *Machine) Advance(userInput string, accept AcceptanceFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	if accept == nil {
		accept = DefaultAcceptance
	}

	now := m.now()
	cur := m.sess.CurrentPhase

	if strings.TrimSpace(userInput) != "" {
		m.state.SharedContext.UserInputs = append(m.state.SharedContext.UserInputs, domain.ContextItem{
			Text:      userInput,
			Pathway:   m.sess.Pathway,
			CreatedAt: now,
		})
	}

	if accept(cur, userInput) {
		m.sess.Progress.PhaseCompletion[cur] = 100
	}
	m.freezeAllocation(cur, now)

	next, ok := m.sess.Pathway.NextPhase(cur)
	if ok {
		m.sess.CurrentPhase = next.ID
		if a := m.sess.Allocation(next.ID); a != nil {
			t := now
			a.StartTime = &t
		}
		m.sess.Progress.CurrentStep = next.Name
		m.sess.Progress.NextSteps = remainingSteps(m.sess.Pathway, next.ID)
	} else {
		m.sess.Status = domain.SessionStatusCompleted
		m.sess.Progress.CurrentStep = ""
		m.sess.Progress.NextSteps = nil
		for i := range m.sess.Allocations {
			m.freezeAllocation(m.sess.Allocations[i].PhaseID, now)
		}
	}

	m.recomputeProgress(now)
	return nil
}

// SetPhaseCompletion records partial completion for a phase. Overall
// completion is always recomputed from the per-phase values, never set
// directly.
func (m *Machine) SetPhaseCompletion(phaseID string, pct float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	if !m.sess.Pathway.HasPhase(phaseID) {
		return domain.ErrNotFound
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	m.sess.Progress.PhaseCompletion[phaseID] = pct
	m.recomputeProgress(m.now())
	return nil
}

// Pause stops the wall clock for the current phase. Pausing a paused
// session is a no-op, not an error.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.Status.Terminal() {
		return domain.ErrSessionTerminal
	}
	if m.sess.Status == domain.SessionStatusPaused {
		return nil
	}
	m.freezeAllocation(m.sess.CurrentPhase, m.now())
	m.sess.Status = domain.SessionStatusPaused
	return nil
}

// Resume restarts the wall clock for the current phase without resetting
// the accumulated elapsed time. Resuming an active session is a no-op.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.Status.Terminal() {
		return domain.ErrSessionTerminal
	}
	if m.sess.Status == domain.SessionStatusActive {
		return nil
	}
	if a := m.sess.Allocation(m.sess.CurrentPhase); a != nil {
		t := m.now()
		a.StartTime = &t
	}
	m.sess.Status = domain.SessionStatusActive
	return nil
}

// Exit abandons the session. Abandoned is terminal: every further operation
// fails with ErrSessionTerminal.
func (m *Machine) Exit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.Status.Terminal() {
		return domain.ErrSessionTerminal
	}
	m.freezeAllocation(m.sess.CurrentPhase, m.now())
	m.sess.Status = domain.SessionStatusAbandoned
	m.recomputeProgress(m.now())
	return nil
}

// RemainingTime estimates how much session time is left. Best effort: it
// extrapolates from the time already used, falling back to the pathway's
// nominal duration before any progress exists.
func (m *Machine) RemainingTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	used := SessionElapsed(m.sess, now)
	nominal := time.Duration(m.sess.Pathway.TotalMinutes()) * time.Minute
	return EstimateRemaining(m.sess.Progress.OverallCompletion, used, nominal)
}

// CurrentPhaseElapsed returns the time spent in the current phase so far.
func (m *Machine) CurrentPhaseElapsed() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return PhaseElapsed(m.sess.Allocation(m.sess.CurrentPhase), m.now())
}

// requireActive guards mutating operations. Callers hold the write lock.
func (m *Machine) requireActive() error {
	if m.sess.Status.Terminal() {
		return domain.ErrSessionTerminal
	}
	if m.sess.Status != domain.SessionStatusActive {
		return domain.ErrSessionNotActive
	}
	return nil
}

// freezeAllocation folds the open interval of a phase into its accumulated
// elapsed time and clears the start marker. Callers hold the write lock.
func (m *Machine) freezeAllocation(phaseID string, now time.Time) {
	a := m.sess.Allocation(phaseID)
	if a == nil || a.StartTime == nil {
		return
	}
	a.Elapsed += now.Sub(*a.StartTime)
	a.StartTime = nil
}

// recomputeProgress derives overall completion as the weighted sum of phase
// completions and refreshes the global progress mirror. Callers hold the
// write lock.
func (m *Machine) recomputeProgress(now time.Time) {
	overall := 0.0
	for phaseID, pct := range m.sess.Progress.PhaseCompletion {
		overall += m.sess.Pathway.PhaseWeight(phaseID) * pct
	}
	// The weighted float sum can drift a hair past the bounds.
	if overall > 100 {
		overall = 100
	} else if overall < 0 {
		overall = 0
	}
	m.sess.Progress.OverallCompletion = overall

	pathway := m.sess.Pathway
	m.state.GlobalProgress.PathwayCompletions[pathway] = overall
	m.state.GlobalProgress.TimeSpent[pathway] = SessionElapsed(m.sess, now)
	var total time.Duration
	for _, d := range m.state.GlobalProgress.TimeSpent {
		total += d
	}
	m.state.GlobalProgress.TotalSessionTime = total
	m.state.GlobalProgress.OverallCompletion = overall
	if m.sess.Status == domain.SessionStatusCompleted {
		m.state.Analytics.CompletionRate = 100
	} else {
		m.state.Analytics.CompletionRate = overall
	}
}

func remainingSteps(pathway domain.Pathway, fromPhaseID string) []string {
	var steps []string
	seen := false
	for _, ph := range pathway.Phases() {
		if seen {
			steps = append(steps, ph.Name)
		}
		if ph.ID == fromPhaseID {
			seen = true
		}
	}
	return steps
}
