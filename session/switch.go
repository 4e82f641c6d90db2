package session

import (
	"github.com/bmad-method/orchestrator/domain"
)

// PreviewSwitch computes the impact of moving from the session's current
// pathway to target. Pure: it depends only on the two pathways' phase tables
// and the current progress and context; calling it never mutates anything.
func PreviewSwitch(sess *domain.Session, state *domain.UniversalSessionState, target domain.Pathway) (domain.SwitchImpact, error) {
	if !target.Valid() {
		return domain.SwitchImpact{}, domain.ErrInvalidPathway
	}

	impact := domain.SwitchImpact{
		ProgressLoss:     progressLoss(sess, target),
		ContextRetention: contextRetention(&state.SharedContext, target),
	}
	impact.RiskLevel = classifyRisk(impact.ProgressLoss, impact.ContextRetention)
	return impact, nil
}

// progressLoss is the percentage of the overall progress carried by phases
// that do not exist in the target pathway's phase structure.
func progressLoss(sess *domain.Session, target domain.Pathway) float64 {
	overall := sess.Progress.OverallCompletion
	if overall <= 0 {
		return 0
	}
	lost := 0.0
	for phaseID, pct := range sess.Progress.PhaseCompletion {
		if !target.HasPhase(phaseID) {
			lost += sess.Pathway.PhaseWeight(phaseID) * pct
		}
	}
	return lost / overall * 100
}

// contextRetention is the percentage of shared-context items that carry over
// to the target pathway. User inputs, insights and recommendations are
// pathway-agnostic by construction; generated documents retain only when
// they originate from the target pathway.
func contextRetention(ctx *domain.SharedContext, target domain.Pathway) float64 {
	total := ctx.Items()
	if total == 0 {
		return 100
	}
	retained := len(ctx.UserInputs) + len(ctx.KeyInsights) + len(ctx.Recommendations)
	for _, doc := range ctx.GeneratedDocuments {
		if doc.Pathway == target {
			retained++
		}
	}
	return float64(retained) / float64(total) * 100
}

func classifyRisk(progressLoss, contextRetention float64) domain.RiskLevel {
	switch {
	case progressLoss > 50 || contextRetention < 30:
		return domain.RiskHigh
	case progressLoss > 25 || contextRetention < 65:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// PreviewSwitch evaluates a switch against the machine's current state.
func (m *Machine) PreviewSwitch(target domain.Pathway) (domain.SwitchImpact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return PreviewSwitch(m.sess, m.state, target)
}

// ExecuteSwitch atomically moves the session to the target pathway. A
// non-low-risk switch fails with ErrConfirmationRequired unless
// userConfirmed is set. On success the transition is appended to the
// history, the switch counter is incremented, the target pathway gets a
// fresh time-allocation set, and the shared context is carried over
// unchanged when transferContext is set (documents from other pathways are
// kept either way; the agnostic lists are dropped when not transferring).
// On any error the state is left exactly as it was.
func (m *Machine) ExecuteSwitch(target domain.Pathway, transferContext, userConfirmed bool, reason domain.TransitionReason) (domain.SwitchImpact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.Status.Terminal() {
		return domain.SwitchImpact{}, domain.ErrSessionTerminal
	}
	if m.sess.Status != domain.SessionStatusActive {
		return domain.SwitchImpact{}, domain.ErrSessionNotActive
	}

	impact, err := PreviewSwitch(m.sess, m.state, target)
	if err != nil {
		return domain.SwitchImpact{}, err
	}
	if !userConfirmed && impact.RiskLevel != domain.RiskLow {
		return impact, domain.ErrConfirmationRequired
	}

	now := m.now()
	from := m.sess.Pathway

	// Build the post-switch state on copies; commit only once both are ready
	// so a failure can never leave a partial switch observable.
	newState := m.state.Clone()
	elapsed := SessionElapsed(m.sess, now)
	newState.GlobalProgress.PathwayCompletions[from] = m.sess.Progress.OverallCompletion
	newState.GlobalProgress.TimeSpent[from] = elapsed
	if _, ok := newState.GlobalProgress.PathwayCompletions[target]; !ok {
		newState.GlobalProgress.PathwayCompletions[target] = 0
	}
	if _, ok := newState.GlobalProgress.TimeSpent[target]; !ok {
		newState.GlobalProgress.TimeSpent[target] = 0
	}

	newState.CurrentPathway = target
	newState.PathwayHistory = append(newState.PathwayHistory, domain.PathwayTransition{
		FromPathway:        &from,
		ToPathway:          target,
		Reason:             reason,
		Timestamp:          now,
		ContextTransferred: transferContext,
	})
	newState.Analytics.PathwaySwitches++

	if !transferContext {
		newState.SharedContext = domain.SharedContext{
			GeneratedDocuments: newState.SharedContext.GeneratedDocuments,
		}
	}

	newSess := &domain.Session{
		SessionID:    m.sess.SessionID,
		UserID:       m.sess.UserID,
		Pathway:      target,
		CurrentPhase: target.FirstPhase().ID,
		Status:       domain.SessionStatusActive,
		StartTime:    m.sess.StartTime,
		Allocations:  newAllocations(target, now),
		Progress:     newProgress(target),
	}

	m.sess = newSess
	m.state = newState
	return impact, nil
}
