package services

import (
	"context"
	"strings"
	"time"

	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionOutcome reports which way a toggle went.
type ReactionOutcome string

const (
	ReactionAdded   ReactionOutcome = "added"
	ReactionRemoved ReactionOutcome = "removed"
)

// MessageService owns message rows, read receipts and reactions. Edits,
// deletes and reactions emit their events here so both transports observe
// identical behavior.
type MessageService struct {
	db    *gorm.DB
	rooms *RoomManager
}

func NewMessageService(db *gorm.DB, rooms *RoomManager) *MessageService {
	return &MessageService{db: db, rooms: rooms}
}

// Append persists a new message. Content may be empty only when at least one
// attachment is present; replies must target a message in the same
// conversation. Message order within a conversation is defined by CreatedAt,
// not by arrival order here.
func (s *MessageService) Append(ctx context.Context, conversationID, senderID, content string, attachments []models.Attachment, replyToID *string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return nil, apperrors.Validation("message content or attachments required")
	}

	if replyToID != nil {
		var replyTo models.Message
		if err := s.db.WithContext(ctx).First(&replyTo, "id = ?", *replyToID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, apperrors.NotFound("reply target not found")
			}
			return nil, err
		}
		if replyTo.ConversationID != conversationID {
			return nil, apperrors.Validation("reply target belongs to a different conversation")
		}
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           inferMessageType(attachments),
		ReplyToID:      replyToID,
	}
	if err := msg.SetAttachments(attachments); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Sender").First(&msg, "id = ?", msg.ID).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Get resolves one message with sender, receipts and reactions.
func (s *MessageService) Get(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Preload("ReadBy").
		Preload("Reactions").
		First(&msg, "id = ?", messageID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, err
	}
	return &msg, nil
}

// ListForConversation pages through a conversation newest-first, optionally
// constrained to messages before a timestamp. Deleted messages still appear,
// already redacted. Callers reverse the page before display.
func (s *MessageService) ListForConversation(ctx context.Context, conversationID string, page, limit int, before *time.Time) ([]models.Message, error) {
	page, limit = normalizePage(page, limit)

	query := s.db.WithContext(ctx).
		Preload("Sender").
		Preload("ReadBy").
		Preload("Reactions").
		Where("conversation_id = ?", conversationID)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var messages []models.Message
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	s.resolveReplies(ctx, messages)
	return messages, nil
}

// MarkRead records a read receipt. Adding an entry for a user who already
// has one is a no-op; the receipt set only grows.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID string) error {
	var msg models.Message
	if err := s.db.WithContext(ctx).Select("id", "conversation_id").
		First(&msg, "id = ?", messageID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("message not found")
		}
		return err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return err
	}

	receipt := models.MessageRead{MessageID: messageID, UserID: userID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&receipt).Error
}

// SoftDelete redacts a message's content and attachments while keeping the
// row, so threading and reply references survive. Sender only.
func (s *MessageService) SoftDelete(ctx context.Context, messageID, requesterID string) (*models.Message, error) {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, apperrors.Forbidden("not allowed")
	}
	if msg.IsDeleted {
		return msg, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":     models.DeletedContentPlaceholder,
			"attachments": nil,
			"is_deleted":  true,
		}).Error; err != nil {
		return nil, err
	}

	msg.Content = models.DeletedContentPlaceholder
	msg.Attachments = nil
	msg.IsDeleted = true

	s.rooms.EmitToConversation(msg.ConversationID, EventMessageDeleted, map[string]interface{}{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
	})
	return msg, nil
}

// Edit replaces a message's content. Sender only; deleted messages cannot be
// edited.
func (s *MessageService) Edit(ctx context.Context, messageID, requesterID, newContent string) (*models.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, apperrors.Validation("message content is required")
	}

	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, apperrors.Forbidden("not allowed")
	}
	if msg.IsDeleted {
		return nil, apperrors.Validation("deleted messages cannot be edited")
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":   newContent,
			"edited_at": now,
		}).Error; err != nil {
		return nil, err
	}

	msg.Content = newContent
	msg.EditedAt = &now

	s.rooms.EmitToConversation(msg.ConversationID, EventMessageEdited, map[string]interface{}{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
		"content":        msg.Content,
		"editedAt":       msg.EditedAt,
	})
	return msg, nil
}

// ToggleReaction flips the (user, emoji) pair on a message: present is
// removed, absent is added. Toggling twice restores the original set.
func (s *MessageService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (ReactionOutcome, []models.MessageReaction, error) {
	if strings.TrimSpace(emoji) == "" {
		return "", nil, apperrors.Validation("emoji is required")
	}

	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return "", nil, err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return "", nil, err
	}

	outcome := ReactionRemoved
	res := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{})
	if res.Error != nil {
		return "", nil, res.Error
	}
	if res.RowsAffected == 0 {
		reaction := models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&reaction).Error; err != nil {
			return "", nil, err
		}
		outcome = ReactionAdded
	}

	var reactions []models.MessageReaction
	if err := s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error; err != nil {
		return "", nil, err
	}

	s.rooms.EmitToConversation(msg.ConversationID, EventReactionUpdate, map[string]interface{}{
		"messageId":      messageID,
		"conversationId": msg.ConversationID,
		"userId":         userID,
		"emoji":          emoji,
		"action":         outcome,
		"reactions":      reactions,
	})
	return outcome, reactions, nil
}

// -- internals -- //

// requireParticipant rejects receipt and reaction writes from users outside
// the conversation, regardless of which transport the call came through.
func (s *MessageService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.Forbidden("not allowed")
	}
	return nil
}

// resolveReplies fills the ReplyTo previews for one page of messages with a
// single extra query.
func (s *MessageService) resolveReplies(ctx context.Context, messages []models.Message) {
	ids := make([]string, 0)
	for _, m := range messages {
		if m.ReplyToID != nil {
			ids = append(ids, *m.ReplyToID)
		}
	}
	if len(ids) == 0 {
		return
	}

	var targets []models.Message
	if err := s.db.WithContext(ctx).Preload("Sender").
		Where("id IN ?", ids).Find(&targets).Error; err != nil {
		return
	}

	byID := make(map[string]*models.Message, len(targets))
	for i := range targets {
		byID[targets[i].ID] = &targets[i]
	}
	for i := range messages {
		if messages[i].ReplyToID != nil {
			messages[i].ReplyTo = byID[*messages[i].ReplyToID]
		}
	}
}

func inferMessageType(attachments []models.Attachment) string {
	if len(attachments) == 0 {
		return models.MessageTypeText
	}
	if strings.HasPrefix(attachments[0].MimeType, "image/") {
		return models.MessageTypeImage
	}
	return models.MessageTypeFile
}
