package service

import (
	"context"
	"fmt"
	"log"

	"github.com/bmad-method/orchestrator/domain"
	"github.com/bmad-method/orchestrator/policy"
)

// PreviewSwitch computes the impact of switching a session to the target
// pathway without changing anything.
func (s *Service) PreviewSwitch(ctx context.Context, sessionID string, target domain.Pathway) (domain.SwitchImpact, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return domain.SwitchImpact{}, err
	}
	return m.PreviewSwitch(target)
}

// ExecuteSwitch moves a session to the target pathway. The switch policy is
// consulted first: a blocked switch fails with ErrSwitchBlocked, an
// unconfirmed non-low-risk switch with ErrConfirmationRequired. The previous
// state is backed up before the switch; only once the machine has accepted
// it is any in-flight stream cancelled and the new state persisted and
// announced to connected clients. A rejected switch leaves the session and
// its stream untouched.
func (s *Service) ExecuteSwitch(ctx context.Context, sessionID string, target domain.Pathway, transferContext, userConfirmed bool, reason domain.TransitionReason) (domain.SwitchImpact, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return domain.SwitchImpact{}, err
	}

	switch sess := m.Session(); {
	case sess.Status.Terminal():
		return domain.SwitchImpact{}, domain.ErrSessionTerminal
	case sess.Status != domain.SessionStatusActive:
		return domain.SwitchImpact{}, domain.ErrSessionNotActive
	}

	impact, err := m.PreviewSwitch(target)
	if err != nil {
		return domain.SwitchImpact{}, err
	}

	if s.policyEngine != nil {
		state := m.State()
		decision, err := s.policyEngine.Evaluate(ctx, policy.SwitchInput{
			RiskLevel:       string(impact.RiskLevel),
			ProgressLoss:    impact.ProgressLoss,
			UserConfirmed:   userConfirmed,
			PathwaySwitches: state.Analytics.PathwaySwitches,
		})
		if err != nil {
			return domain.SwitchImpact{}, fmt.Errorf("failed to evaluate switch policy: %w", err)
		}
		switch decision {
		case policy.DecisionBlock:
			return impact, domain.ErrSwitchBlocked
		case policy.DecisionRequireConfirmation:
			return impact, domain.ErrConfirmationRequired
		}
	}

	// Snapshot the pre-switch state so a switch is always reversible from
	// the backup history, even when context is not transferred.
	if _, err := s.Backup(ctx, sessionID, "pre-switch"); err != nil {
		log.Printf("WARN: failed to back up session %s before switch: %v", sessionID, err)
	}

	impact, err = m.ExecuteSwitch(target, transferContext, userConfirmed, reason)
	if err != nil {
		return impact, err
	}
	s.cancelStream(sessionID)
	s.persist(ctx, m)

	sess := m.Session()
	s.pushEvent(sessionID, map[string]interface{}{
		"type":          "pathway_switched",
		"session_id":    sessionID,
		"pathway":       sess.Pathway,
		"current_phase": sess.CurrentPhase,
		"impact":        impact,
	})
	log.Printf("INFO: session %s switched to pathway %s (loss %.1f%%, retention %.1f%%)",
		sessionID, target, impact.ProgressLoss, impact.ContextRetention)
	return impact, nil
}
