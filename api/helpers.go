package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bmad-method/orchestrator/domain"
)

// jsonError maps domain errors to HTTP responses. Unknown errors are logged
// and surfaced as 500 without leaking internals.
func jsonError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrInvalidPathway):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid pathway"})
	case errors.Is(err, domain.ErrSessionTerminal):
		return c.JSON(http.StatusConflict, map[string]string{"error": "session is terminal"})
	case errors.Is(err, domain.ErrSessionNotActive):
		return c.JSON(http.StatusConflict, map[string]string{"error": "session is not active"})
	case errors.Is(err, domain.ErrConfirmationRequired):
		return c.JSON(http.StatusConflict, map[string]string{"error": "confirmation required"})
	case errors.Is(err, domain.ErrSwitchBlocked):
		return c.JSON(http.StatusConflict, map[string]string{"error": "switch blocked by policy"})
	default:
		log.Printf("ERROR: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}
