package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// SendMessage records a user message and starts the facilitated exchange.
// The response acknowledges the committed user message; the assistant's
// reply streams over the session's WebSocket.
// POST /v1/sessions/:session_id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Content == "" {
		return badRequest(c, "content is required")
	}

	sessionID := c.Param("session_id")
	msg, err := h.svc.SendMessage(c.Request().Context(), sessionID, req.Content)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": msg,
		"offline": h.svc.Offline(sessionID),
	})
}

// GetSessionMessages returns the conversation log for a session.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	before := c.QueryParam("before")

	messages, err := h.svc.GetMessages(ctx, sessionID, limit+1, before)
	if err != nil {
		return jsonError(c, err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": hasMore,
	})
}
