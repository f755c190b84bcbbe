package middleware

import (
	"errors"
	"net/http"
	"strings"

	"notebox/services"
	"notebox/utils"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is missing or uses another scheme.
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func AuthMiddleware(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.ResolveToken(c.Request.Context(), BearerToken(c))
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the caller stored by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (services.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return services.Identity{}, false
	}
	identity, ok := v.(services.Identity)
	return identity, ok
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := http.StatusUnauthorized, "Could not validate credentials"
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		code, message = appErr.HTTPCode, appErr.Message
	}
	if code == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	utils.Error(c, code, message)
	c.Abort()
}
