package handlers

import (
	"notebox/utils"

	"github.com/gin-gonic/gin"
)

func GetProfile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	user, err := getServices().Auth.Me(c.Request.Context(), identity)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, user)
}
