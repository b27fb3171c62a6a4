package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pushnami/api/logger"
	"pushnami/api/metrics"
)

// RequestLogger logs every request once it completes and records the HTTP
// metrics for it.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())

		if log == nil {
			return
		}
		fields := []interface{}{
			"method", method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		}
		if id, ok := c.Get(ctxAdminID); ok {
			fields = append(fields, "admin_id", id)
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
