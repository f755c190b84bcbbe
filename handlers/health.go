package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"notebox/utils"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

// HealthCheck answers 503 while the database cannot be reached.
func HealthCheck(c *gin.Context) {
	if appOptions.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := appOptions.Ping(ctx); err != nil {
			slog.Warn("health check failed", "component", "database", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unavailable",
				"service":  "notebox",
				"database": "down",
			})
			return
		}
	}
	utils.Success(c, gin.H{
		"status":   "ok",
		"service":  "notebox",
		"database": "ok",
	})
}
