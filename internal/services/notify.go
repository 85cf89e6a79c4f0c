package services

import (
	"context"
	"encoding/json"

	"github.com/saem16/professional-networking-platform-sub001/internal/events"
	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier is the bridge contract the dispatch pipeline calls after a message
// is persisted. Fire-and-forget: implementations log failures, the send path
// never sees them.
type Notifier interface {
	CreateNotification(ctx context.Context, recipientID, actorID string, ntype models.NotificationType, payload map[string]interface{})
}

// NotificationService persists notifications, pushes them to the recipient's
// personal channel and queues them for the offline push/email worker.
type NotificationService struct {
	db        *gorm.DB
	rooms     *RoomManager
	publisher *events.Publisher
	queue     string
}

func NewNotificationService(db *gorm.DB, rooms *RoomManager, publisher *events.Publisher, queue string) *NotificationService {
	return &NotificationService{db: db, rooms: rooms, publisher: publisher, queue: queue}
}

func (s *NotificationService) CreateNotification(ctx context.Context, recipientID, actorID string, ntype models.NotificationType, payload map[string]interface{}) {
	notification := models.Notification{
		UserID:  recipientID,
		ActorID: actorID,
		Type:    ntype,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", recipientID).Msg("failed to encode notification payload")
		} else {
			notification.Payload = datatypes.JSON(raw)
		}
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		logger.Error().Err(err).
			Str("user_id", recipientID).
			Str("type", string(ntype)).
			Msg("failed to persist notification")
		return
	}

	s.rooms.EmitToUser(recipientID, EventNotification, map[string]interface{}{
		"id":        notification.ID,
		"type":      notification.Type,
		"actorId":   notification.ActorID,
		"payload":   payload,
		"createdAt": notification.CreatedAt,
		"isRead":    notification.IsRead,
	})

	s.publisher.Publish(ctx, s.queue, "notification."+string(ntype), map[string]interface{}{
		"notificationId": notification.ID,
		"recipientId":    recipientID,
		"actorId":        actorID,
		"type":           ntype,
		"payload":        payload,
	})
}

// ListForUser returns the recipient's most recent notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Preload("Actor").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// UnreadCount counts the recipient's unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification read; only the recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification of a recipient read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}
