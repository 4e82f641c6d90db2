package service

import (
	"context"
	"fmt"

	"github.com/bmad-method/orchestrator/domain"
)

// AnalyzeIntent maps free-form user text to a pathway recommendation via
// the facilitator backend. The recommendation is advisory: acting on it
// still goes through the normal preview/confirm switch flow.
func (s *Service) AnalyzeIntent(ctx context.Context, text string) (*domain.PathwayRecommendation, error) {
	rec, err := s.facilitator.AnalyzeIntent(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze intent: %w", err)
	}
	if !rec.Pathway.Valid() {
		return nil, domain.ErrInvalidPathway
	}
	return rec, nil
}
