package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 3 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// PingFunc checks that a dependency is reachable
type PingFunc func(ctx context.Context) error

// HealthHandlers reports dependency health
type HealthHandlers struct {
	checks map[string]PingFunc
}

// NewHealthHandlers creates a health handler over the named dependency checks
func NewHealthHandlers(checks map[string]PingFunc) *HealthHandlers {
	return &HealthHandlers{checks: checks}
}

// HealthCheck godoc
// @Summary Health check
// @Description Checks the API and its dependencies (MongoDB and Redis)
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "All services healthy"
// @Failure 503 {object} HealthResponse "One or more services unavailable"
// @Router /health [get]
func (h *HealthHandlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pingCtx, span, done := utils.TraceExternalService(ctx, name, "ping")
		if err := h.checks[name](pingCtx); err != nil {
			utils.RecordErrorInSpan(span, err, map[string]interface{}{"service.status": "unhealthy"})
			observability.Logger().Warn("health check failed",
				zap.String("service", name), zap.Error(err))
			health.Status = "unhealthy"
			health.Services[name] = "unhealthy"
		} else {
			health.Services[name] = "healthy"
		}
		done()
	}

	if health.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}
