package handlers

import (
	"net/http"

	"notebox/middleware"
	"notebox/services"
	"notebox/utils"

	"github.com/gin-gonic/gin"
)

// Credentials bind from either a JSON body or a urlencoded form.
type RegisterRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := getServices().Auth.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Password: req.Password,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Created(c, user)
}

func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	tokens, err := getServices().Auth.Login(c.Request.Context(), services.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, tokens)
}

// Refresh accepts the refresh token as a bearer header or in the body.
func Refresh(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		var req RefreshRequest
		_ = c.ShouldBind(&req)
		token = req.RefreshToken
	}
	if token == "" {
		c.Header("WWW-Authenticate", "Bearer")
		utils.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	tokens, err := getServices().Auth.Refresh(c.Request.Context(), token)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, tokens)
}

func Logout(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if respondServiceError(c, getServices().Auth.Logout(c.Request.Context(), identity)) {
		return
	}
	utils.SuccessWithMessage(c, "Logged out")
}
