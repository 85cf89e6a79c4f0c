package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/saem16/professional-networking-platform-sub001/internal/handlers"
	"github.com/saem16/professional-networking-platform-sub001/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.POST("/conversations/direct", handlers.CreateDirectConversation)
		chat.POST("/conversations/group", handlers.CreateGroupConversation)
		chat.GET("/conversations", handlers.ListConversations)
		chat.GET("/conversations/:id", handlers.GetConversation)
		chat.DELETE("/conversations/:id", handlers.DeleteConversation)
		chat.POST("/conversations/:id/participants", handlers.AddParticipants)
		chat.DELETE("/conversations/:id/participants/:userId", handlers.RemoveParticipant)
		chat.POST("/conversations/:id/leave", handlers.LeaveConversation)
		chat.POST("/conversations/:id/read", handlers.MarkConversationRead)
		chat.POST("/conversations/:id/mute", handlers.MuteConversation)

		chat.GET("/conversations/:id/messages", handlers.ListMessages)
		chat.POST("/conversations/:id/messages", middleware.ChatRateLimit(), handlers.SendMessage)
		chat.PUT("/messages/:id", handlers.EditMessage)
		chat.DELETE("/messages/:id", handlers.DeleteMessage)
		chat.POST("/messages/:id/reactions", handlers.ToggleReaction)
		chat.POST("/messages/:id/read", handlers.MarkMessageRead)
	}
}
