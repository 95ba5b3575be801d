package middleware

import (
	"log/slog"
	"time"

	"itsm-knowledge-base/helper"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"uri", c.Request.RequestURI,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"correlation_id", c.GetString(helper.CorrelationIDKey),
			"client_ip", c.ClientIP(),
		}
		if p, ok := GetPrincipal(c); ok {
			attrs = append(attrs, "user_id", p.ID)
		}

		switch {
		case status >= 500:
			slog.Error("Request", attrs...)
		case status >= 400:
			slog.Warn("Request", attrs...)
		default:
			slog.Info("Request", attrs...)
		}
	}
}
