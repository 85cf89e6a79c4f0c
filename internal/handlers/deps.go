package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/saem16/professional-networking-platform-sub001/internal/services"
	"github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
)

// Service singletons wired once at startup (and by tests).
var (
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Presence      *services.PresenceRegistry
	Rooms         *services.RoomManager
	Users         *services.UserService
	Notifications *services.NotificationService
	Chat          *services.Dispatcher
)

// Deps bundles everything the handler layer needs.
type Deps struct {
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Presence      *services.PresenceRegistry
	Rooms         *services.RoomManager
	Users         *services.UserService
	Notifications *services.NotificationService
	Chat          *services.Dispatcher
}

// Init wires the handler package to its services.
func Init(d Deps) {
	Conversations = d.Conversations
	Messages = d.Messages
	Presence = d.Presence
	Rooms = d.Rooms
	Users = d.Users
	Notifications = d.Notifications
	Chat = d.Chat
}

// respondError maps service errors onto the response envelope. AppErrors keep
// their status and message; anything else is a generic 500 so store failures
// never leak details to clients.
func respondError(c *gin.Context, err error) {
	if appErr, ok := errors.As(err); ok {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	logger.Error().Err(err).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
	c.JSON(500, gin.H{"error": "Internal Server Error"})
}
