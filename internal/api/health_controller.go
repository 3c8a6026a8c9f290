package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/fitcoach-bot/internal/lifecycle"
)

// HealthController exposes the liveness and readiness probes.
type HealthController struct {
	probes lifecycle.HealthChecker
}

// NewHealthController creates a new HealthController.
func NewHealthController(probes lifecycle.HealthChecker) *HealthController {
	return &HealthController{probes: probes}
}

// Liveness handles GET /healthz.
func (h *HealthController) Liveness(c *gin.Context) {
	if err := h.probes.Liveness(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *HealthController) Readiness(c *gin.Context) {
	report, err := h.probes.Readiness(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     report.Status,
			"components": report.Components,
			"error":      err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}
