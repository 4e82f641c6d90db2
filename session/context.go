package session

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bmad-method/orchestrator/domain"
)

// Context-store operations. The shared context is the only structure that
// deliberately survives pathway switches within a session; all lists are
// append-only.

// AddUserInput appends a user input to the shared context.
func (m *Machine) AddUserInput(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SharedContext.UserInputs = append(m.state.SharedContext.UserInputs, m.item(text))
}

// AddInsight appends an extracted insight to the shared context.
func (m *Machine) AddInsight(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SharedContext.KeyInsights = append(m.state.SharedContext.KeyInsights, m.item(text))
}

// AddRecommendation appends a recommendation to the shared context.
func (m *Machine) AddRecommendation(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SharedContext.Recommendations = append(m.state.SharedContext.Recommendations, m.item(text))
}

// AddDocument registers a generated document reference. Documents stay bound
// to the pathway that produced them.
func (m *Machine) AddDocument(title string) domain.DocumentRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := domain.DocumentRef{
		DocumentID: "doc_" + uuid.New().String()[:8],
		Title:      title,
		Pathway:    m.sess.Pathway,
		CreatedAt:  m.now(),
	}
	m.state.SharedContext.GeneratedDocuments = append(m.state.SharedContext.GeneratedDocuments, ref)
	return ref
}

// AddBehaviorPattern records an observed user behavior pattern in analytics.
func (m *Machine) AddBehaviorPattern(pattern string) {
	if strings.TrimSpace(pattern) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Analytics.UserBehaviorPatterns = append(m.state.Analytics.UserBehaviorPatterns, pattern)
}

func (m *Machine) item(text string) domain.ContextItem {
	return domain.ContextItem{
		Text:      text,
		Pathway:   m.sess.Pathway,
		CreatedAt: m.now(),
	}
}
