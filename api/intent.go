package api

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/bmad-method/orchestrator/domain"
)

// AnalyzeIntent maps free-form text to a pathway recommendation.
// POST /v1/intent
func (h *Handler) AnalyzeIntent(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Text == "" {
		return badRequest(c, "text is required")
	}

	rec, err := h.svc.AnalyzeIntent(c.Request().Context(), req.Text)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// CalculatePriority scores one or more effort/impact pairs.
// POST /v1/priority
func (h *Handler) CalculatePriority(c echo.Context) error {
	var req struct {
		Items []struct {
			Name   string  `json:"name"`
			Effort float64 `json:"effort"`
			Impact float64 `json:"impact"`
		} `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Items) == 0 {
		return badRequest(c, "items is required")
	}

	type scored struct {
		Name string `json:"name,omitempty"`
		domain.PriorityScore
	}
	results := make([]scored, len(req.Items))
	for i, item := range req.Items {
		results[i] = scored{Name: item.Name, PriorityScore: domain.CalculatePriority(item.Effort, item.Impact)}
	}
	// Highest score first so the response doubles as a ranking.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

// ListPathways returns the closed set of pathways and their phase structure.
// GET /v1/pathways
func (h *Handler) ListPathways(c echo.Context) error {
	type pathwayInfo struct {
		Pathway      domain.Pathway           `json:"pathway"`
		TotalMinutes int                      `json:"total_minutes"`
		Phases       []domain.PhaseDescriptor `json:"phases"`
	}
	pathways := domain.Pathways()
	out := make([]pathwayInfo, len(pathways))
	for i, p := range pathways {
		out[i] = pathwayInfo{
			Pathway:      p,
			TotalMinutes: p.TotalMinutes(),
			Phases:       p.Phases(),
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"pathways": out})
}
