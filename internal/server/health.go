package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":         "ok",
		"uptime_seconds": time.Since(h.started).Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if h.deps.Health != nil {
		if err := h.deps.Health.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			h.logger.Warn("health.database_unavailable", "error", err)
			body["status"] = "degraded"
			body["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	c.JSON(code, body)
}
