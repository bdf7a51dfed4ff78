package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"metaredact/internal/queue"
)

type HealthHandler struct {
	version string
	queue   *queue.Queue
}

func NewHealthHandler(version string, q *queue.Queue) *HealthHandler {
	return &HealthHandler{version: version, queue: q}
}

// HandleHealth returns server health status and queue counts.
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"queue":   h.queue.Counts(),
	})
}
