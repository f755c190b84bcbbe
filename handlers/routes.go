package handlers

import (
	"notebox/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the HTTP API. Collection routes answer with and
// without the trailing slash.
func RegisterRoutes(r *gin.Engine) {
	auth := middleware.AuthMiddleware(getServices().Auth)

	r.GET("/metrics", middleware.MetricsHandler())

	api := r.Group("/api")
	api.GET("/health", HealthCheck)

	v1 := api.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", Register)
		authGroup.POST("/login", Login)
		authGroup.POST("/refresh", Refresh)
		authGroup.POST("/logout", auth, Logout)
	}

	v1.GET("/users/me", auth, GetProfile)

	files := v1.Group("/files", auth)
	{
		collection(files, "POST", UploadFiles)
		collection(files, "GET", ListFiles)
		files.GET("/download/:id/:filename", DownloadFile)
		files.GET("/:id", GetFile)
		files.DELETE("/:id", DeleteFile)
		files.GET("/:id/thumbnail", GetThumbnail)
	}

	notes := v1.Group("/notes", auth)
	{
		collection(notes, "POST", CreateNote)
		collection(notes, "GET", ListNotes)
		notes.GET("/:id", GetNote)
		notes.PUT("/:id", UpdateNote)
		notes.DELETE("/:id", DeleteNote)
		notes.POST("/:id/attach", AttachFiles)
		notes.POST("/:id/detach", DetachFiles)
	}
}

func collection(g *gin.RouterGroup, method string, h gin.HandlerFunc) {
	g.Handle(method, "", h)
	g.Handle(method, "/", h)
}
