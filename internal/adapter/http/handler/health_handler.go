package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler reports gateway liveness and dependency health.
type HealthHandler struct {
	checkers []ports.HealthChecker
}

// NewHealthHandler creates a HealthHandler over the given dependency checks.
func NewHealthHandler(checkers ...ports.HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

// Health handles GET /health: 200 when every dependency answers, 503 with
// per-dependency detail otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	deps := make(map[string]string, len(h.checkers))
	healthy := true
	for _, checker := range h.checkers {
		if err := checker.Ping(ctx); err != nil {
			deps[checker.Name()] = err.Error()
			healthy = false
		} else {
			deps[checker.Name()] = "ok"
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}
