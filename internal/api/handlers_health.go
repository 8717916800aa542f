// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports service liveness and basic counters
type HealthHandler struct {
	repo      Repository
	version   string
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(repo Repository, version string) *HealthHandler {
	return &HealthHandler{
		repo:      repo,
		version:   version,
		startedAt: time.Now(),
	}
}

// HandleHealth returns server health status
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"name":    "cvlens",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	}
	if count, err := h.repo.Count(c.Request().Context()); err == nil {
		body["resumes"] = count
	}
	if active, err := h.repo.CountNonTerminal(c.Request().Context()); err == nil {
		body["activeAnalyses"] = active
	}
	return c.JSON(http.StatusOK, body)
}
