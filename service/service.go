// Package service is the orchestration layer: it owns the live session
// machines and binds them to persistence, the facilitator backend, the
// WebSocket hub and the switch policy.
package service

import (
	"context"
	"log"
	"sync"

	"github.com/bmad-method/orchestrator/config"
	"github.com/bmad-method/orchestrator/facilitator"
	"github.com/bmad-method/orchestrator/hub"
	"github.com/bmad-method/orchestrator/policy"
	"github.com/bmad-method/orchestrator/session"
	"github.com/bmad-method/orchestrator/store"
)

type Service struct {
	store        store.Store
	facilitator  *facilitator.Client
	hub          *hub.Hub
	config       *config.Config
	policyEngine *policy.Engine

	// Acceptance criteria for phase advancement. Nil means the default
	// non-empty-input predicate.
	acceptance session.AcceptanceFunc

	mu       sync.Mutex
	machines map[string]*session.Machine
	health   map[string]*sessionHealth
	streams  map[string]context.CancelFunc
}

// sessionHealth tracks per-session facilitator connectivity. Once failures
// reach the configured threshold the session degrades to offline mode:
// input is still accepted and persisted locally, but no stream is opened
// until an explicit retry.
type sessionHealth struct {
	failures int
	offline  bool
}

func New(st store.Store, fc *facilitator.Client, h *hub.Hub, cfg *config.Config, policyEngine *policy.Engine) *Service {
	return &Service{
		store:        st,
		facilitator:  fc,
		hub:          h,
		config:       cfg,
		policyEngine: policyEngine,
		machines:     make(map[string]*session.Machine),
		health:       make(map[string]*sessionHealth),
		streams:      make(map[string]context.CancelFunc),
	}
}

// machine returns the live machine for a session, restoring it from the
// store on first access.
func (s *Service) machine(ctx context.Context, sessionID string) (*session.Machine, error) {
	s.mu.Lock()
	if m, ok := s.machines[sessionID]; ok {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := s.store.LoadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have restored it while we were loading.
	if m, ok := s.machines[sessionID]; ok {
		return m, nil
	}
	m := session.Restore(sess, state)
	s.machines[sessionID] = m
	return m, nil
}

func (s *Service) healthFor(sessionID string) *sessionHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.health[sessionID]
	if !ok {
		h = &sessionHealth{}
		s.health[sessionID] = h
	}
	return h
}

// Offline reports whether a session is in degraded offline mode.
func (s *Service) Offline(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.health[sessionID]; ok {
		return h.offline
	}
	return false
}

// Retry clears a session's offline state so the next message opens a
// stream again.
func (s *Service) Retry(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.health[sessionID]; ok {
		h.failures = 0
		h.offline = false
	}
}

func (s *Service) registerStream(sessionID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.streams[sessionID]; ok {
		prev()
	}
	s.streams[sessionID] = cancel
}

func (s *Service) clearStream(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, sessionID)
}

// cancelStream cancels a session's in-flight facilitator stream, if any.
// Exiting a session or switching pathways mid-stream releases the
// connection through this.
func (s *Service) cancelStream(sessionID string) {
	s.mu.Lock()
	cancel, ok := s.streams[sessionID]
	delete(s.streams, sessionID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// persist writes the machine's current snapshot through the store.
// Failures are logged, not returned: the in-memory machine stays the
// source of truth and the periodic sync retries.
func (s *Service) persist(ctx context.Context, m *session.Machine) {
	sess, state := m.Snapshot()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		log.Printf("ERROR: failed to persist session %s: %v", sess.SessionID, err)
		return
	}
	if err := s.store.SaveState(ctx, sess.SessionID, state); err != nil {
		log.Printf("ERROR: failed to persist state %s: %v", sess.SessionID, err)
	}
}

func (s *Service) pushEvent(sessionID string, event map[string]interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastJSON(sessionID, event); err != nil {
		log.Printf("WARN: failed to push event to session %s: %v", sessionID, err)
	}
}
