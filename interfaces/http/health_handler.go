package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crosspost/infrastructure/logger"
)

// Check is a named readiness check, e.g. a database ping.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type IHealthHandler interface {
	Healthz(ctx *gin.Context)
	Readyz(ctx *gin.Context)
}

type HealthHandler struct {
	checks []Check
}

func NewHealthHandler(checks ...Check) IHealthHandler {
	return &HealthHandler{checks: checks}
}

// Healthz returns OK for liveness checks
func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	c, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(c); err != nil {
			logger.GetLogger().WithField("check", check.Name).WithField("error", err).Warn("Readiness check failed")
			results[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}
	ctx.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
}
