package middleware

import (
	"log/slog"
	"time"

	"notebox/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes per-request logs at debug level. Server errors are
// always logged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		rawQuery := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		if status < 500 && !logger.IsDebugEnabled() {
			return
		}
		if rawQuery != "" {
			path = path + "?" + rawQuery
		}

		level := slog.LevelDebug
		if status >= 500 {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
			"path", path,
		)
	}
}
