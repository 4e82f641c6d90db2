package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bmad-method/orchestrator/domain"
)

// CreateSession starts a new session.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req struct {
		Pathway   string `json:"pathway"`
		SeedInput string `json:"seed_input"`
		UserID    string `json:"user_id"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	pathway, err := domain.ParsePathway(req.Pathway)
	if err != nil {
		return jsonError(c, err)
	}
	if req.UserID == "" {
		req.UserID = "default_user"
	}

	sess, err := h.svc.CreateSession(c.Request().Context(), pathway, req.SeedInput, req.UserID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// GetSession returns the live session view.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.svc.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// GetState returns the universal session state.
// GET /v1/sessions/:session_id/state
func (h *Handler) GetState(c echo.Context) error {
	state, err := h.svc.GetState(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// ListSessions lists sessions, optionally filtered by user.
// GET /v1/sessions?user_id=
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.svc.ListSessions(c.Request().Context(), c.QueryParam("user_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetTimeStatus returns elapsed and estimated-remaining session time.
// GET /v1/sessions/:session_id/time
func (h *Handler) GetTimeStatus(c echo.Context) error {
	ts, err := h.svc.TimeStatusFor(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, ts)
}

// Advance finishes the current phase and opens the next one.
// POST /v1/sessions/:session_id/advance
func (h *Handler) Advance(c echo.Context) error {
	var req struct {
		UserInput string `json:"user_input"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	sess, err := h.svc.Advance(c.Request().Context(), c.Param("session_id"), req.UserInput)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// SetProgress records partial completion for a phase.
// POST /v1/sessions/:session_id/progress
func (h *Handler) SetProgress(c echo.Context) error {
	var req struct {
		PhaseID string  `json:"phase_id"`
		Pct     float64 `json:"pct"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PhaseID == "" {
		return badRequest(c, "phase_id is required")
	}

	sess, err := h.svc.SetPhaseCompletion(c.Request().Context(), c.Param("session_id"), req.PhaseID, req.Pct)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Pause pauses a session.
// POST /v1/sessions/:session_id/pause
func (h *Handler) Pause(c echo.Context) error {
	sess, err := h.svc.Pause(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Resume resumes a paused session.
// POST /v1/sessions/:session_id/resume
func (h *Handler) Resume(c echo.Context) error {
	sess, err := h.svc.Resume(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Exit abandons a session.
// POST /v1/sessions/:session_id/exit
func (h *Handler) Exit(c echo.Context) error {
	sess, err := h.svc.Exit(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Retry clears a session's offline mode.
// POST /v1/sessions/:session_id/retry
func (h *Handler) Retry(c echo.Context) error {
	sessionID := c.Param("session_id")
	// Make sure the session exists before touching health state.
	if _, err := h.svc.GetSession(c.Request().Context(), sessionID); err != nil {
		return jsonError(c, err)
	}
	h.svc.Retry(sessionID)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"offline":    h.svc.Offline(sessionID),
	})
}

// CreateBackup records a tagged snapshot of a session's state.
// POST /v1/sessions/:session_id/backups
func (h *Handler) CreateBackup(c echo.Context) error {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Tag == "" {
		req.Tag = "manual"
	}

	snapID, err := h.svc.Backup(c.Request().Context(), c.Param("session_id"), req.Tag)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"snapshot_id": snapID})
}

// ListBackups lists a session's snapshots.
// GET /v1/sessions/:session_id/backups
func (h *Handler) ListBackups(c echo.Context) error {
	snaps, err := h.svc.ListBackups(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"snapshots": snaps})
}
