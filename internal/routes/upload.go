package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/saem16/professional-networking-platform-sub001/internal/handlers"
	"github.com/saem16/professional-networking-platform-sub001/internal/middleware"
)

func RegisterUploadRoutes(r gin.IRouter) {
	upload := r.Group("/upload")
	upload.Use(middleware.AuthMiddleware())
	{
		upload.POST("/chat", handlers.UploadChatAttachment)
	}
}
