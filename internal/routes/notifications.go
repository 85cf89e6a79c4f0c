package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/saem16/professional-networking-platform-sub001/internal/handlers"
	"github.com/saem16/professional-networking-platform-sub001/internal/middleware"
)

func RegisterNotificationRoutes(r gin.IRouter) {
	notifications := r.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware())
	{
		notifications.GET("", handlers.GetNotifications)
		notifications.GET("/unread-count", handlers.GetUnreadNotificationCount)
		notifications.PUT("/:id/read", handlers.MarkNotificationRead)
		notifications.PUT("/read-all", handlers.MarkAllNotificationsRead)
	}
}
