package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func NewHandler(status StatusProvider, platforms []string, schedule, version string) *Handler {
	return &Handler{
		status:    status,
		platforms: platforms,
		schedule:  schedule,
		version:   version,
		startedAt: time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"version":   h.version,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	runs, lastRunAt := h.status.Runs()

	stats := gin.H{
		"platforms": h.platforms,
		"schedule":  h.schedule,
		"runs":      runs,
		"results":   h.status.LastResults(),
	}

	if !lastRunAt.IsZero() {
		stats["last_run_at"] = lastRunAt.Format(time.RFC3339)
	}
	if next := h.status.NextRun(); !next.IsZero() {
		stats["next_run_at"] = next.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, stats)
}
