package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

const HeaderRequestID = "X-Request-ID"

// RequestID propagates or mints a request id and stores it on the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http.request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("http.request", attrs...)
		default:
			logger.Info("http.request", attrs...)
		}
	}
}

// Recovery turns a handler panic into a 500 without leaking the value.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.Error("http.panic", "path", c.Request.URL.Path, "panic", rec,
			"request_id", common.RequestIDFromContext(c.Request.Context()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "INTERNAL",
			Message: "internal server error",
		})
	})
}

// CORS allows the given origins, or any origin when none are configured.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", HeaderRequestID}
	cfg.ExposeHeaders = []string{HeaderRequestID, "Content-Disposition"}
	return cors.New(cfg)
}
