// Package api provides HTTP and WebSocket handlers for the orchestrator.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bmad-method/orchestrator/hub"
	"github.com/bmad-method/orchestrator/service"
)

// Handler handles HTTP requests.
type Handler struct {
	svc *service.Service
	hub *hub.Hub
	ws  *wsServer
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, h *hub.Hub) *Handler {
	return &Handler{
		svc: svc,
		hub: h,
		ws:  newWSServer(h),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Session lifecycle
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.GET("/v1/sessions/:session_id/state", h.GetState)
	e.GET("/v1/sessions/:session_id/time", h.GetTimeStatus)
	e.POST("/v1/sessions/:session_id/advance", h.Advance)
	e.POST("/v1/sessions/:session_id/progress", h.SetProgress)
	e.POST("/v1/sessions/:session_id/pause", h.Pause)
	e.POST("/v1/sessions/:session_id/resume", h.Resume)
	e.POST("/v1/sessions/:session_id/exit", h.Exit)
	e.POST("/v1/sessions/:session_id/retry", h.Retry)

	// Pathway switching
	e.POST("/v1/sessions/:session_id/switch/preview", h.PreviewSwitch)
	e.POST("/v1/sessions/:session_id/switch", h.ExecuteSwitch)

	// Conversation
	e.POST("/v1/sessions/:session_id/messages", h.SendMessage)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)

	// Snapshots
	e.POST("/v1/sessions/:session_id/backups", h.CreateBackup)
	e.GET("/v1/sessions/:session_id/backups", h.ListBackups)

	// Analysis helpers
	e.POST("/v1/intent", h.AnalyzeIntent)
	e.POST("/v1/priority", h.CalculatePriority)
	e.GET("/v1/pathways", h.ListPathways)

	// Event stream
	e.GET("/v1/sessions/:session_id/ws", h.ws.HandleWebSocket)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
