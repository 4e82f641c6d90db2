package domain

import (
	"time"
)

// Session is the per-pathway view of a running session.
type Session struct {
	SessionID    string           `json:"session_id"`
	UserID       string           `json:"user_id"`
	Pathway      Pathway          `json:"pathway"`
	CurrentPhase string           `json:"current_phase"`
	Status       SessionStatus    `json:"status"`
	StartTime    time.Time        `json:"start_time"`
	Allocations  []TimeAllocation `json:"allocations"`
	Progress     Progress         `json:"progress"`
}

// TimeAllocation tracks wall-clock budget and spend for one phase.
// While the session is active exactly one allocation has a non-nil StartTime:
// the one matching Session.CurrentPhase.
type TimeAllocation struct {
	PhaseID          string        `json:"phase_id"`
	AllocatedMinutes int           `json:"allocated_minutes"`
	StartTime        *time.Time    `json:"start_time,omitempty"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Progress tracks completion across the current pathway's phases.
// OverallCompletion is always the weighted sum of PhaseCompletion values
// (weights = each phase's share of the pathway's allocated minutes); it is
// recomputed on every update rather than set directly.
type Progress struct {
	OverallCompletion float64            `json:"overall_completion"`
	PhaseCompletion   map[string]float64 `json:"phase_completion"`
	CurrentStep       string             `json:"current_step,omitempty"`
	NextSteps         []string           `json:"next_steps,omitempty"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	out.Allocations = make([]TimeAllocation, len(s.Allocations))
	copy(out.Allocations, s.Allocations)
	for i := range out.Allocations {
		if s.Allocations[i].StartTime != nil {
			t := *s.Allocations[i].StartTime
			out.Allocations[i].StartTime = &t
		}
	}
	out.Progress.PhaseCompletion = make(map[string]float64, len(s.Progress.PhaseCompletion))
	for k, v := range s.Progress.PhaseCompletion {
		out.Progress.PhaseCompletion[k] = v
	}
	out.Progress.NextSteps = append([]string(nil), s.Progress.NextSteps...)
	return &out
}

// Allocation returns the allocation for a phase id, or nil.
func (s *Session) Allocation(phaseID string) *TimeAllocation {
	for i := range s.Allocations {
		if s.Allocations[i].PhaseID == phaseID {
			return &s.Allocations[i]
		}
	}
	return nil
}

// PathwayTransition records one entry into a pathway. Immutable once appended.
type PathwayTransition struct {
	FromPathway        *Pathway         `json:"from_pathway,omitempty"`
	ToPathway          Pathway          `json:"to_pathway"`
	Reason             TransitionReason `json:"reason"`
	Timestamp          time.Time        `json:"timestamp"`
	ContextTransferred bool             `json:"context_transferred"`
}

// ContextItem is one entry of the cross-pathway shared context. Items in the
// user-input/insight/recommendation lists are pathway-agnostic by
// construction; Pathway records provenance only.
type ContextItem struct {
	Text      string    `json:"text"`
	Pathway   Pathway   `json:"pathway,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentRef points at a generated document. Documents stay bound to the
// pathway that produced them.
type DocumentRef struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Pathway    Pathway   `json:"pathway"`
	CreatedAt  time.Time `json:"created_at"`
}

// SharedContext is the pathway-agnostic shared memory carried across switches.
// All lists are append-only.
type SharedContext struct {
	UserInputs         []ContextItem `json:"user_inputs"`
	KeyInsights        []ContextItem `json:"key_insights"`
	Recommendations    []ContextItem `json:"recommendations"`
	GeneratedDocuments []DocumentRef `json:"generated_documents"`
}

// Items returns the total number of shared context entries.
func (c *SharedContext) Items() int {
	return len(c.UserInputs) + len(c.KeyInsights) + len(c.Recommendations) + len(c.GeneratedDocuments)
}

// GlobalProgress aggregates progress across every pathway the session visited.
type GlobalProgress struct {
	OverallCompletion  float64                   `json:"overall_completion"`
	PathwayCompletions map[Pathway]float64       `json:"pathway_completions"`
	TimeSpent          map[Pathway]time.Duration `json:"time_spent"`
	TotalSessionTime   time.Duration             `json:"total_session_time"`
}

// Analytics holds session-level counters.
type Analytics struct {
	PathwaySwitches      int      `json:"pathway_switches"`
	CompletionRate       float64  `json:"completion_rate"`
	UserBehaviorPatterns []string `json:"user_behavior_patterns,omitempty"`
}

// UniversalSessionState is the cross-pathway superset of session state. It is
// created on the first entry into any pathway, mutated append-only by the
// switch engine and by message commits, and only ever superseded by a new
// session id, never deleted.
type UniversalSessionState struct {
	SessionID       string              `json:"session_id"`
	CurrentPathway  Pathway             `json:"current_pathway"`
	PathwayHistory  []PathwayTransition `json:"pathway_history"`
	SharedContext   SharedContext       `json:"shared_context"`
	GlobalProgress  GlobalProgress      `json:"global_progress"`
	Analytics       Analytics           `json:"analytics"`
}

// Clone returns a deep copy of the universal state.
func (u *UniversalSessionState) Clone() *UniversalSessionState {
	out := *u
	out.PathwayHistory = make([]PathwayTransition, len(u.PathwayHistory))
	copy(out.PathwayHistory, u.PathwayHistory)
	for i := range out.PathwayHistory {
		if u.PathwayHistory[i].FromPathway != nil {
			p := *u.PathwayHistory[i].FromPathway
			out.PathwayHistory[i].FromPathway = &p
		}
	}
	out.SharedContext.UserInputs = append([]ContextItem(nil), u.SharedContext.UserInputs...)
	out.SharedContext.KeyInsights = append([]ContextItem(nil), u.SharedContext.KeyInsights...)
	out.SharedContext.Recommendations = append([]ContextItem(nil), u.SharedContext.Recommendations...)
	out.SharedContext.GeneratedDocuments = append([]DocumentRef(nil), u.SharedContext.GeneratedDocuments...)
	out.GlobalProgress.PathwayCompletions = make(map[Pathway]float64, len(u.GlobalProgress.PathwayCompletions))
	for k, v := range u.GlobalProgress.PathwayCompletions {
		out.GlobalProgress.PathwayCompletions[k] = v
	}
	out.GlobalProgress.TimeSpent = make(map[Pathway]time.Duration, len(u.GlobalProgress.TimeSpent))
	for k, v := range u.GlobalProgress.TimeSpent {
		out.GlobalProgress.TimeSpent[k] = v
	}
	out.Analytics.UserBehaviorPatterns = append([]string(nil), u.Analytics.UserBehaviorPatterns...)
	return &out
}

// SwitchImpact is the deterministic preview of a pathway switch.
type SwitchImpact struct {
	ProgressLoss     float64   `json:"progress_loss"`
	ContextRetention float64   `json:"context_retention"`
	RiskLevel        RiskLevel `json:"risk_level"`
}

// PathwayRecommendation is the opaque output of the intent-analysis
// collaborator. The switch engine treats it as an input, never re-derives it.
type PathwayRecommendation struct {
	Pathway      Pathway              `json:"pathway"`
	Confidence   float64              `json:"confidence"`
	Reasoning    string               `json:"reasoning"`
	Alternatives []PathwayAlternative `json:"alternatives,omitempty"`
}

// PathwayAlternative is a lower-confidence recommendation candidate.
type PathwayAlternative struct {
	Pathway    Pathway `json:"pathway"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}
