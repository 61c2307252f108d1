package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"supplyledger/pkg/logger"
)

// Logger middleware stores log in the request context for the handlers
// below it and logs each request with timing and status.
func Logger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Default()
	}
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithContext(c.Request.Context())
		write := entry.Infow
		if status >= 500 {
			write = entry.Errorw
		} else if status >= 400 {
			write = entry.Warnw
		}

		write("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
