package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/travelmesh/logging"
)

// requestLogger logs method, path, status and latency of every request.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		if status >= 500 {
			logger.Error("http.request", fields...)
			return
		}
		logger.Info("http.request", fields...)
	}
}
