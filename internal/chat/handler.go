package chat

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the chat hydration endpoints. Live traffic goes over the
// WebSocket bridge; this REST surface only serves the history a client loads
// after joining or rejoining a room.
type Handler struct {
	service *Service
}

// NewHandler creates a chat HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HistoryGet returns a project's message log, most recent first.
func (h *Handler) HistoryGet(c echo.Context) error {
	projectID := c.Param("projectID")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project ID is required")
	}

	messages, err := h.service.History(c.Request().Context(), projectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load message history").SetInternal(err)
	}
	if messages == nil {
		messages = []Message{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"messages": messages,
	})
}
