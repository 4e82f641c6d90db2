package service

import (
	"context"
	"fmt"
	"log"

	"github.com/bmad-method/orchestrator/domain"
	"github.com/bmad-method/orchestrator/session"
)

// CreateSession starts a new session on the given pathway and persists it.
func (s *Service) CreateSession(ctx context.Context, pathway domain.Pathway, seedInput, userID string) (*domain.Session, error) {
	m, err := session.New(pathway, seedInput, userID)
	if err != nil {
		return nil, err
	}

	sess, state := m.Snapshot()
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.store.SaveState(ctx, sess.SessionID, state); err != nil {
		return nil, fmt.Errorf("failed to save session state: %w", err)
	}

	s.mu.Lock()
	s.machines[sess.SessionID] = m
	s.mu.Unlock()

	log.Printf("INFO: created session %s on pathway %s", sess.SessionID, pathway)
	return sess, nil
}

// GetSession returns the live view of a session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.Session(), nil
}

// GetState returns the universal session state.
func (s *Service) GetState(ctx context.Context, sessionID string) (*domain.UniversalSessionState, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.State(), nil
}

// ListSessions lists sessions, optionally filtered by user.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.store.ListSessions(ctx, userID)
}

// Advance finishes the current phase and moves to the next one.
func (s *Service) Advance(ctx context.Context, sessionID, userInput string) (*domain.Session, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.Advance(userInput, s.acceptance); err != nil {
		return nil, err
	}
	s.persist(ctx, m)

	sess := m.Session()
	s.pushEvent(sessionID, map[string]interface{}{
		"type":          "phase_advanced",
		"session_id":    sessionID,
		"current_phase": sess.CurrentPhase,
		"status":        sess.Status,
		"progress":      sess.Progress,
	})
	return sess, nil
}

// SetPhaseCompletion records partial progress for a phase.
func (s *Service) SetPhaseCompletion(ctx context.Context, sessionID, phaseID string, pct float64) (*domain.Session, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.SetPhaseCompletion(phaseID, pct); err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return m.Session(), nil
}

// Pause pauses a session.
func (s *Service) Pause(ctx context.Context, sessionID string) (*domain.Session, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.Pause(); err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return m.Session(), nil
}

// Resume resumes a paused session.
func (s *Service) Resume(ctx context.Context, sessionID string) (*domain.Session, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.Resume(); err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return m.Session(), nil
}

// Exit abandons a session. Any in-flight facilitator stream is cancelled
// and the final state is persisted.
func (s *Service) Exit(ctx context.Context, sessionID string) (*domain.Session, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.cancelStream(sessionID)
	if err := m.Exit(); err != nil {
		return nil, err
	}
	s.persist(ctx, m)

	s.pushEvent(sessionID, map[string]interface{}{
		"type":       "session_exited",
		"session_id": sessionID,
	})
	return m.Session(), nil
}

// TimeStatus is the time-tracking view of a session.
type TimeStatus struct {
	CurrentPhase        string  `json:"current_phase"`
	PhaseElapsedSeconds float64 `json:"phase_elapsed_seconds"`
	RemainingSeconds    float64 `json:"remaining_seconds"`
	OverallCompletion   float64 `json:"overall_completion"`
}

// TimeStatusFor returns elapsed and estimated-remaining time for a session.
func (s *Service) TimeStatusFor(ctx context.Context, sessionID string) (*TimeStatus, error) {
	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess := m.Session()
	return &TimeStatus{
		CurrentPhase:        sess.CurrentPhase,
		PhaseElapsedSeconds: m.CurrentPhaseElapsed().Seconds(),
		RemainingSeconds:    m.RemainingTime().Seconds(),
		OverallCompletion:   sess.Progress.OverallCompletion,
	}, nil
}
