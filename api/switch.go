package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bmad-method/orchestrator/domain"
)

// PreviewSwitch returns the impact of a proposed pathway switch without
// executing it.
// POST /v1/sessions/:session_id/switch/preview
func (h *Handler) PreviewSwitch(c echo.Context) error {
	var req struct {
		Target string `json:"target"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	target, err := domain.ParsePathway(req.Target)
	if err != nil {
		return jsonError(c, err)
	}

	impact, err := h.svc.PreviewSwitch(c.Request().Context(), c.Param("session_id"), target)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, impact)
}

// ExecuteSwitch moves a session to another pathway. A switch that needs
// confirmation comes back as 409 with the impact attached, so the client
// can re-submit with user_confirmed set.
// POST /v1/sessions/:session_id/switch
func (h *Handler) ExecuteSwitch(c echo.Context) error {
	var req struct {
		Target          string `json:"target"`
		TransferContext *bool  `json:"transfer_context"`
		UserConfirmed   bool   `json:"user_confirmed"`
		Reason          string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	target, err := domain.ParsePathway(req.Target)
	if err != nil {
		return jsonError(c, err)
	}

	// Context transfers by default; dropping it is the explicit choice.
	transfer := true
	if req.TransferContext != nil {
		transfer = *req.TransferContext
	}
	reason := domain.TransitionReasonUserChoice
	switch req.Reason {
	case string(domain.TransitionReasonRecommendation):
		reason = domain.TransitionReasonRecommendation
	case string(domain.TransitionReasonForced):
		reason = domain.TransitionReasonForced
	}

	impact, err := h.svc.ExecuteSwitch(c.Request().Context(), c.Param("session_id"), target, transfer, req.UserConfirmed, reason)
	if err != nil {
		if errors.Is(err, domain.ErrConfirmationRequired) {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":  "confirmation required",
				"impact": impact,
			})
		}
		if errors.Is(err, domain.ErrSwitchBlocked) {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":  "switch blocked by policy",
				"impact": impact,
			})
		}
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"impact": impact,
		"target": target,
	})
}
