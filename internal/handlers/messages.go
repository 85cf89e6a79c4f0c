package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	"github.com/saem16/professional-networking-platform-sub001/internal/services"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
)

// ListMessages GET /chat/conversations/:id/messages?page=&limit=&before=
// Newest first; pass `before` (RFC3339) for reverse-chronological paging.
func ListMessages(c *gin.Context) {
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

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, apperrors.Validation("before must be an RFC3339 timestamp"))
			return
		}
		before = &parsed
	}

	messages, err := Messages.ListForConversation(c.Request.Context(), conversationID, page, limit, before)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "page": page})
}

// SendMessage POST /chat/conversations/:id/messages
// Both this handler and the socket send_message event go through the same
// dispatch pipeline.
func SendMessage(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	var req struct {
		Content     string              `json:"content"`
		Attachments []models.Attachment `json:"attachments"`
		ReplyToID   *string             `json:"replyToId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Invalid request"))
		return
	}

	msg, err := Chat.Send(c.Request.Context(), services.SendRequest{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		Attachments:    req.Attachments,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Message sent", "data": msg})
}

// EditMessage PUT /chat/messages/:id
func EditMessage(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID := c.Param("id")

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Invalid request"))
		return
	}

	msg, err := Messages.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message updated", "data": msg})
}

// DeleteMessage DELETE /chat/messages/:id
func DeleteMessage(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID := c.Param("id")

	msg, err := Messages.SoftDelete(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted", "data": msg})
}

// ToggleReaction POST /chat/messages/:id/reactions
func ToggleReaction(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID := c.Param("id")

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("emoji is required"))
		return
	}

	outcome, reactions, err := Messages.ToggleReaction(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Reaction " + string(outcome),
		"action":    outcome,
		"reactions": reactions,
	})
}

// MarkMessageRead POST /chat/messages/:id/read
func MarkMessageRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID := c.Param("id")

	if err := Messages.MarkRead(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message marked read"})
}
