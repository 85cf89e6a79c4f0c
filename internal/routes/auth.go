package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/saem16/professional-networking-platform-sub001/internal/handlers"
	"github.com/saem16/professional-networking-platform-sub001/internal/middleware"
)

func RegisterAuthRoutes(r gin.IRouter) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", middleware.AuthRateLimit(), handlers.Register)
		auth.POST("/login", middleware.AuthRateLimit(), handlers.Login)
		auth.GET("/me", middleware.AuthMiddleware(), handlers.GetMe)
	}
}
