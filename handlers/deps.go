package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"notebox/middleware"
	"notebox/services"
	"notebox/utils"

	"github.com/gin-gonic/gin"
)

// Options carries the request defaults handlers apply before calling services.
type Options struct {
	DefaultPageSize int
	// Ping reports whether the database is reachable. Nil skips the check.
	Ping func(ctx context.Context) error
}

var (
	appServices *services.Container
	appOptions  = Options{DefaultPageSize: 10}
)

func SetServices(container *services.Container, opts Options) {
	appServices = container
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	appOptions = opts
}

func getServices() *services.Container {
	if appServices == nil {
		panic("services container is not initialized")
	}
	return appServices
}

func respondServiceError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode >= http.StatusInternalServerError && appErr.Err != nil {
			slog.Error(appErr.Message, "path", c.FullPath(), "error", appErr.Err)
		}
		if appErr.Data != nil {
			utils.ErrorWithData(c, appErr.HTTPCode, appErr.Message, appErr.Data)
		} else {
			utils.Error(c, appErr.HTTPCode, appErr.Message)
		}
		return true
	}
	slog.Error("unhandled error", "path", c.FullPath(), "error", err)
	utils.Error(c, http.StatusInternalServerError, "internal error")
	return true
}

// currentIdentity reads the caller set by the auth middleware. Routes using
// it are always mounted behind that middleware.
func currentIdentity(c *gin.Context) (services.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		utils.Error(c, http.StatusUnauthorized, "Not authenticated")
		return services.Identity{}, false
	}
	return identity, true
}

func bindError(c *gin.Context, err error) {
	utils.Error(c, http.StatusUnprocessableEntity, "invalid request: "+err.Error())
}
