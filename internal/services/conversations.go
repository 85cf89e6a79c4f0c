package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationService owns conversation rows, participant membership and the
// per-participant unread counters. All counter math is expressed as atomic
// single-row SQL updates; there is no in-process lock around mutations.
type ConversationService struct {
	db    *gorm.DB
	rooms *RoomManager
}

func NewConversationService(db *gorm.DB, rooms *RoomManager) *ConversationService {
	return &ConversationService{db: db, rooms: rooms}
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation models.Conversation `json:"conversation"`
	UnreadCount  int                 `json:"unreadCount"`
}

// FindOrCreateDirect returns the one direct conversation between two users,
// creating it if absent. Creation is an upsert keyed on the canonical sorted
// pair, so concurrent calls for the same pair converge on a single row.
// The second return value reports whether this call created it.
func (s *ConversationService) FindOrCreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	if userA == userB {
		return nil, false, apperrors.Validation("cannot start a conversation with yourself")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ?", []string{userA, userB}).Count(&count).Error; err != nil {
		return nil, false, err
	}
	if count < 2 {
		return nil, false, apperrors.NotFound("user not found")
	}

	key := models.DirectKeyFor(userA, userB)
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv := models.Conversation{DirectKey: &key}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "direct_key"}},
			DoNothing: true,
		}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race or the pair already existed; caller gets the
			// canonical row either way.
			return nil
		}
		created = true
		participants := []models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: userA},
			{ConversationID: conv.ID, UserID: userB},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, false, err
	}

	var conv models.Conversation
	if err := s.preloaded(ctx).Where("direct_key = ?", key).First(&conv).Error; err != nil {
		return nil, false, err
	}

	if created {
		for _, userID := range []string{userA, userB} {
			s.rooms.SubscribeUser(userID, ConversationRoom(conv.ID))
			s.rooms.EmitToUser(userID, EventNewConversation, map[string]interface{}{
				"conversation": conv,
			})
		}
	}

	return &conv, created, nil
}

// CreateGroup creates a group conversation with the admin always included in
// the participant set, and records a "Group created" system message.
func (s *ConversationService) CreateGroup(ctx context.Context, name, description, adminID string, participantIDs []string) (*models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("group name is required")
	}
	if len(participantIDs) == 0 {
		return nil, apperrors.Validation("participant list is required")
	}

	ids := dedupeIDs(append([]string{adminID}, participantIDs...))

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ?", ids).Count(&count).Error; err != nil {
		return nil, err
	}
	if count < int64(len(ids)) {
		return nil, apperrors.NotFound("user not found")
	}

	conv := models.Conversation{
		IsGroup:     true,
		Name:        name,
		Description: description,
		AdminID:     &adminID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		participants := make([]models.ConversationParticipant, 0, len(ids))
		for _, id := range ids {
			participants = append(participants, models.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         id,
			})
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		_, err := s.appendSystem(tx, &conv, adminID, "Group created")
		return err
	})
	if err != nil {
		return nil, err
	}

	full, err := s.Get(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		s.rooms.SubscribeUser(id, ConversationRoom(conv.ID))
		s.rooms.EmitToUser(id, EventNewConversation, map[string]interface{}{
			"conversation": full,
		})
	}

	return full, nil
}

// Get returns a conversation with participants and last-message preview
// resolved. Soft-deleted conversations do not resolve.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.preloaded(ctx).First(&conv, "id = ?", conversationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("conversation not found")
		}
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the user's conversations ordered by last activity,
// newest first, with the caller's own unread counter attached.
func (s *ConversationService) ListForUser(ctx context.Context, userID string, page, limit int) ([]ConversationSummary, error) {
	page, limit = normalizePage(page, limit)

	memberOf := s.db.Table("conversation_participants").
		Select("conversation_id").Where("user_id = ?", userID)

	var convs []models.Conversation
	if err := s.preloaded(ctx).
		Where("id IN (?)", memberOf).
		Order("last_activity DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&convs).Error; err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		unread := 0
		for _, p := range conv.Participants {
			if p.UserID == userID {
				unread = p.UnreadCount
				break
			}
		}
		summaries = append(summaries, ConversationSummary{Conversation: conv, UnreadCount: unread})
	}
	return summaries, nil
}

// IDsForUser returns the ids of every conversation the user participates in.
// Used to subscribe a fresh connection to its rooms.
func (s *ConversationService) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id IN (?)", s.db.Table("conversation_participants").
			Select("conversation_id").Where("user_id = ?", userID)).
		Pluck("id", &ids).Error
	return ids, err
}

// IsParticipant reports current membership. Used by the dispatch pipeline's
// authorize step and by join_conversation re-validation.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// Participants returns the membership rows of a conversation.
func (s *ConversationService) Participants(ctx context.Context, conversationID string) ([]models.ConversationParticipant, error) {
	var participants []models.ConversationParticipant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&participants).Error
	return participants, err
}

// AddParticipants adds users to a group. Admin only. Already-present users
// are skipped; returns the ids actually added.
func (s *ConversationService) AddParticipants(ctx context.Context, conversationID, actorID string, userIDs []string) ([]string, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, apperrors.Validation("cannot add participants to a direct conversation")
	}
	if conv.AdminID == nil || *conv.AdminID != actorID {
		return nil, apperrors.Forbidden("not allowed")
	}

	existing := make(map[string]bool, len(conv.Participants))
	for _, p := range conv.Participants {
		existing[p.UserID] = true
	}

	added := make([]string, 0, len(userIDs))
	for _, id := range dedupeIDs(userIDs) {
		if !existing[id] {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ?", added).Count(&count).Error; err != nil {
		return nil, err
	}
	if count < int64(len(added)) {
		return nil, apperrors.NotFound("user not found")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]models.ConversationParticipant, 0, len(added))
		for _, id := range added {
			rows = append(rows, models.ConversationParticipant{
				ConversationID: conversationID,
				UserID:         id,
			})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return err
		}
		content := fmt.Sprintf("%s added %s", s.nameOf(tx, actorID), s.namesOf(tx, added))
		_, err := s.appendSystem(tx, conv, actorID, content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.rooms.EmitToConversation(conversationID, EventParticipantsAdded, map[string]interface{}{
		"conversationId": conversationID,
		"actorId":        actorID,
		"userIds":        added,
	})
	for _, id := range added {
		s.rooms.SubscribeUser(id, ConversationRoom(conversationID))
		s.rooms.EmitToUser(id, EventAddedToGroup, map[string]interface{}{
			"conversationId": conversationID,
			"actorId":        actorID,
		})
	}

	return added, nil
}

// RemoveParticipant removes a user from a group. Admin only; removing
// yourself goes through Leave instead.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, actorID, userID string) error {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperrors.Validation("cannot remove participants from a direct conversation")
	}
	if conv.AdminID == nil || *conv.AdminID != actorID {
		return apperrors.Forbidden("not allowed")
	}
	if actorID == userID {
		return apperrors.Validation("use leave to remove yourself")
	}

	isMember, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperrors.NotFound("participant not found")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ConversationParticipant{}, "conversation_id = ? AND user_id = ?", conversationID, userID).Error; err != nil {
			return err
		}
		content := fmt.Sprintf("%s removed %s", s.nameOf(tx, actorID), s.nameOf(tx, userID))
		_, err := s.appendSystem(tx, conv, actorID, content)
		return err
	})
	if err != nil {
		return err
	}

	s.rooms.EmitToConversation(conversationID, EventParticipantRemoved, map[string]interface{}{
		"conversationId": conversationID,
		"actorId":        actorID,
		"userId":         userID,
	})
	s.rooms.UnsubscribeUser(userID, ConversationRoom(conversationID))
	s.rooms.EmitToUser(userID, EventRemovedFromGroup, map[string]interface{}{
		"conversationId": conversationID,
		"actorId":        actorID,
	})

	return nil
}

// Leave removes the caller from a group. When the admin leaves, admin is
// reassigned to the earliest-joined remaining participant; when the last
// participant leaves, the conversation is deleted with all its messages.
func (s *ConversationService) Leave(ctx context.Context, conversationID, userID string) error {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperrors.Validation("cannot leave a direct conversation")
	}

	isMember, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperrors.Forbidden("not allowed")
	}

	deleted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ConversationParticipant{}, "conversation_id = ? AND user_id = ?", conversationID, userID).Error; err != nil {
			return err
		}

		var remaining []models.ConversationParticipant
		if err := tx.Where("conversation_id = ?", conversationID).
			Order("joined_at ASC").Find(&remaining).Error; err != nil {
			return err
		}

		if len(remaining) == 0 {
			deleted = true
			return s.deleteCascade(tx, conv)
		}

		if conv.AdminID != nil && *conv.AdminID == userID {
			newAdmin := remaining[0].UserID
			if err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
				Update("admin_id", newAdmin).Error; err != nil {
				return err
			}
			conv.AdminID = &newAdmin
		}

		content := fmt.Sprintf("%s left", s.nameOf(tx, userID))
		_, err := s.appendSystem(tx, conv, userID, content)
		return err
	})
	if err != nil {
		return err
	}

	s.rooms.UnsubscribeUser(userID, ConversationRoom(conversationID))
	if !deleted {
		s.rooms.EmitToConversation(conversationID, EventParticipantLeft, map[string]interface{}{
			"conversationId": conversationID,
			"userId":         userID,
		})
	}

	return nil
}

// Delete removes a conversation and cascades to its messages. Groups may
// only be deleted by their admin; direct conversations by either participant.
func (s *ConversationService) Delete(ctx context.Context, conversationID, actorID string) error {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}

	if conv.IsGroup {
		if conv.AdminID == nil || *conv.AdminID != actorID {
			return apperrors.Forbidden("not allowed")
		}
	} else {
		isMember, err := s.IsParticipant(ctx, conversationID, actorID)
		if err != nil {
			return err
		}
		if !isMember {
			return apperrors.Forbidden("not allowed")
		}
	}

	participantIDs := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		participantIDs = append(participantIDs, p.UserID)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.deleteCascade(tx, conv)
	}); err != nil {
		return err
	}

	for _, id := range participantIDs {
		s.rooms.UnsubscribeUser(id, ConversationRoom(conversationID))
		if conv.IsGroup && id != actorID {
			s.rooms.EmitToUser(id, EventRemovedFromGroup, map[string]interface{}{
				"conversationId": conversationID,
				"actorId":        actorID,
			})
		}
	}

	return nil
}

// IncrementUnread bumps the unread counter of every participant except the
// excluded sender by exactly one, in a single atomic UPDATE. Called exactly
// once per persisted message by the dispatch pipeline.
func (s *ConversationService) IncrementUnread(ctx context.Context, conversationID, excludeUserID string) error {
	return s.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, excludeUserID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
}

// ResetUnread zeroes one participant's counter. Idempotent.
func (s *ConversationService) ResetUnread(ctx context.Context, conversationID, userID string) error {
	return s.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", 0).Error
}

// Mute sets or clears a participant's mute expiry.
func (s *ConversationService) Mute(ctx context.Context, conversationID, userID string, until *time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("muted_until", until)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("participant not found")
	}
	return nil
}

// TouchLastMessage points the preview reference at a new message and bumps
// last activity.
func (s *ConversationService) TouchLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id": messageID,
			"last_activity":   at,
		}).Error
}

// -- internals -- //

func (s *ConversationService) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Participants.User").
		Preload("LastMessage").
		Preload("LastMessage.Sender")
}

// appendSystem records an audit-style conversation event as a system message
// and moves the preview pointer. System messages never touch unread counters.
func (s *ConversationService) appendSystem(tx *gorm.DB, conv *models.Conversation, actorID, content string) (*models.Message, error) {
	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       actorID,
		Content:        content,
		Type:           models.MessageTypeSystem,
	}
	if err := tx.Create(&msg).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"last_message_id": msg.ID,
			"last_activity":   now,
		}).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *ConversationService) deleteCascade(tx *gorm.DB, conv *models.Conversation) error {
	// Detach the preview reference before the messages it points at go away,
	// and release the direct key so the soft-deleted row no longer occupies
	// the unique index; the pair can start a fresh thread later.
	if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"last_message_id": nil,
			"direct_key":      nil,
		}).Error; err != nil {
		return err
	}

	messageIDs := tx.Model(&models.Message{}).Select("id").
		Where("conversation_id = ?", conv.ID)

	if err := tx.Where("message_id IN (?)", messageIDs).Delete(&models.MessageRead{}).Error; err != nil {
		return err
	}
	if err := tx.Where("message_id IN (?)", messageIDs).Delete(&models.MessageReaction{}).Error; err != nil {
		return err
	}
	if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.ConversationParticipant{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Conversation{}, "id = ?", conv.ID).Error
}

func (s *ConversationService) nameOf(tx *gorm.DB, userID string) string {
	var user models.User
	if err := tx.Select("id", "name", "username").First(&user, "id = ?", userID).Error; err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("failed to resolve display name")
		return "Someone"
	}
	return user.Summary().DisplayName
}

func (s *ConversationService) namesOf(tx *gorm.DB, userIDs []string) string {
	names := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		names = append(names, s.nameOf(tx, id))
	}
	return strings.Join(names, ", ")
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
