package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
)

// CreateDirectConversation POST /chat/conversations/direct
// Find-or-create: repeated calls for the same pair return the same thread.
func CreateDirectConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("userId is required"))
		return
	}

	conv, created, err := Conversations.FindOrCreateDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	message := "Conversation found"
	if created {
		status = http.StatusCreated
		message = "Conversation created"
	}
	c.JSON(status, gin.H{"message": message, "conversation": conv})
}

// CreateGroupConversation POST /chat/conversations/group
func CreateGroupConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req struct {
		Name           string   `json:"name"`
		Description    string   `json:"description"`
		ParticipantIDs []string `json:"participantIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Invalid request"))
		return
	}

	conv, err := Conversations.CreateGroup(c.Request.Context(), req.Name, req.Description, userID, req.ParticipantIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Group created", "conversation": conv})
}

// ListConversations GET /chat/conversations?page=&limit=
func ListConversations(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	summaries, err := Conversations.ListForUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries, "page": page})
}

// GetConversation GET /chat/conversations/:id
func GetConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	isMember, err := Conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !isMember {
		respondError(c, apperrors.Forbidden("not allowed"))
		return
	}

	conv, err := Conversations.Get(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// DeleteConversation DELETE /chat/conversations/:id
func DeleteConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	if err := Conversations.Delete(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// AddParticipants POST /chat/conversations/:id/participants
func AddParticipants(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	var req struct {
		UserIDs []string `json:"userIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("userIds is required"))
		return
	}

	added, err := Conversations.AddParticipants(c.Request.Context(), conversationID, userID, req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participants added", "added": added})
}

// RemoveParticipant DELETE /chat/conversations/:id/participants/:userId
func RemoveParticipant(c *gin.Context) {
	actorID := c.MustGet("userId").(string)
	conversationID := c.Param("id")
	targetID := c.Param("userId")

	if err := Conversations.RemoveParticipant(c.Request.Context(), conversationID, actorID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participant removed"})
}

// LeaveConversation POST /chat/conversations/:id/leave
func LeaveConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	if err := Conversations.Leave(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left conversation"})
}

// MarkConversationRead POST /chat/conversations/:id/read
// Zeroes the caller's unread counter. Safe to call repeatedly.
func MarkConversationRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	isMember, err := Conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !isMember {
		respondError(c, apperrors.Forbidden("not allowed"))
		return
	}

	if err := Conversations.ResetUnread(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation marked read"})
}

// MuteConversation POST /chat/conversations/:id/mute
// Body: {"until": "2026-01-02T15:04:05Z"} or {"until": null} to unmute.
func MuteConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	var req struct {
		Until *time.Time `json:"until"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Invalid request"))
		return
	}

	if err := Conversations.Mute(c.Request.Context(), conversationID, userID, req.Until); err != nil {
		respondError(c, err)
		return
	}

	message := "Conversation muted"
	if req.Until == nil {
		message = "Conversation unmuted"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}
