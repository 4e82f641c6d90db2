package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bmad-method/orchestrator/domain"
	"github.com/bmad-method/orchestrator/facilitator"
	"github.com/bmad-method/orchestrator/session"
)

// SendMessage records a user message and starts the facilitated exchange.
// The user's message is persisted and added to the shared context before
// any network call, so input is never lost to a backend failure. In offline
// mode the message is queued locally and no stream is opened.
func (s *Service) SendMessage(ctx context.Context, sessionID, content string) (*domain.CommittedMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is required")
	}

	m, err := s.machine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess := m.Session()
	if sess.Status.Terminal() {
		return nil, domain.ErrSessionTerminal
	}
	if sess.Status != domain.SessionStatusActive {
		return nil, domain.ErrSessionNotActive
	}

	userMsg := &domain.CommittedMessage{
		MessageID: "msg_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Kind:      domain.MessageKindMessage,
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		log.Printf("ERROR: failed to save user message: %v", err)
		// Continue anyway - message storage failure shouldn't block the exchange
	}
	m.AddUserInput(content)

	if s.Offline(sessionID) {
		s.pushEvent(sessionID, map[string]interface{}{
			"type":       "offline_queued",
			"session_id": sessionID,
			"message_id": userMsg.MessageID,
		})
		return userMsg, nil
	}

	history, err := s.store.GetMessages(ctx, sessionID, 50, "")
	if err != nil {
		log.Printf("WARN: failed to load history for %s: %v", sessionID, err)
		history = nil
	}

	req := &facilitator.MessageRequest{
		SessionID:    sessionID,
		Pathway:      sess.Pathway,
		CurrentPhase: sess.CurrentPhase,
		Content:      content,
		History:      history,
	}

	go s.processMessageStream(sessionID, m, req)

	return userMsg, nil
}

// processMessageStream consumes one facilitator response stream, committing
// messages and handoffs as the demultiplexer produces them and mirroring
// everything to connected clients.
func (s *Service) processMessageStream(sessionID string, m *session.Machine, req *facilitator.MessageRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.StreamTimeout)
	s.registerStream(sessionID, cancel)
	defer func() {
		s.clearStream(sessionID)
		cancel()
	}()

	demux := facilitator.NewDemux(sessionID)

	err := s.facilitator.StreamMessage(ctx, req, func(ev *facilitator.StreamEvent) error {
		update, err := demux.Apply(ev)
		if err != nil {
			return err
		}

		for i := range update.Commits {
			commit := update.Commits[i]
			if err := s.store.SaveMessage(ctx, &commit); err != nil {
				log.Printf("ERROR: failed to save message %s: %v", commit.MessageID, err)
			}

			if commit.Kind == domain.MessageKindHandoff && commit.Handoff != nil {
				m.AddBehaviorPattern(fmt.Sprintf("handoff:%s->%s", commit.Handoff.FromSpeaker, commit.Handoff.ToSpeaker))
				s.pushEvent(sessionID, map[string]interface{}{
					"type":       "handoff",
					"session_id": sessionID,
					"message":    commit,
				})
			} else {
				if insight := insightFrom(commit.Content); insight != "" {
					m.AddInsight(insight)
				}
				s.pushEvent(sessionID, map[string]interface{}{
					"type":       "message",
					"session_id": sessionID,
					"message":    commit,
				})
			}
		}

		if update.Delta != "" {
			s.pushEvent(sessionID, map[string]interface{}{
				"type":       "delta",
				"session_id": sessionID,
				"message_id": update.MessageID,
				"speaker":    demux.CurrentSpeaker(),
				"text":       update.Delta,
			})
		}
		return nil
	})

	if err != nil {
		demux.Abort()

		if errors.Is(err, context.Canceled) {
			// Cancelled on purpose (exit or switch). Not a backend failure.
			log.Printf("INFO: stream for session %s cancelled", sessionID)
			return
		}

		code, message, retryable := "stream_error", err.Error(), false
		var streamErr *domain.StreamError
		if errors.As(err, &streamErr) {
			code, message, retryable = streamErr.Code, streamErr.Message, streamErr.Retryable
		}
		log.Printf("ERROR: stream for session %s failed [%s]: %s", sessionID, code, message)

		s.pushEvent(sessionID, map[string]interface{}{
			"type":       "error",
			"session_id": sessionID,
			"code":       code,
			"message":    message,
			"retryable":  retryable,
		})

		h := s.healthFor(sessionID)
		s.mu.Lock()
		h.failures++
		failures := h.failures
		degraded := h.failures >= s.config.MaxStreamFailures && !h.offline
		if degraded {
			h.offline = true
		}
		s.mu.Unlock()

		if degraded {
			log.Printf("WARN: session %s degraded to offline mode after %d failures", sessionID, failures)
			s.pushEvent(sessionID, map[string]interface{}{
				"type":       "offline_mode",
				"session_id": sessionID,
			})
		}
		return
	}

	h := s.healthFor(sessionID)
	s.mu.Lock()
	h.failures = 0
	h.offline = false
	s.mu.Unlock()

	s.persist(ctx, m)

	complete := map[string]interface{}{
		"type":       "complete",
		"session_id": sessionID,
	}
	if bs := demux.BoardState(); len(bs) > 0 {
		complete["board_state"] = json.RawMessage(bs)
	}
	if ls := demux.LimitStatus(); len(ls) > 0 {
		complete["limit_status"] = json.RawMessage(ls)
	}
	s.pushEvent(sessionID, complete)
}

// GetMessages returns the persisted conversation log.
func (s *Service) GetMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.CommittedMessage, error) {
	return s.store.GetMessages(ctx, sessionID, limit, before)
}

// insightFrom reduces an assistant message to a single shared-context
// insight: its first line, truncated. Blank content yields nothing.
func insightFrom(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	const max = 160
	if len(line) > max {
		line = line[:max]
	}
	return line
}
