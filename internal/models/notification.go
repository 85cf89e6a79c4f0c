package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeMessage        NotificationType = "MESSAGE"
	NotificationTypeAddedToGroup   NotificationType = "ADDED_TO_GROUP"
	NotificationTypeRemovedFromGroup NotificationType = "REMOVED_FROM_GROUP"
	NotificationTypeSystem         NotificationType = "SYSTEM"
)

type Notification struct {
	ID      string           `gorm:"primaryKey;type:text" json:"id"`
	UserID  string           `gorm:"index;type:text;not null" json:"userId"` // Recipient
	ActorID string           `gorm:"index;type:text" json:"actorId"`         // Who performed action
	Type    NotificationType `gorm:"type:varchar(32);not null" json:"type"`

	// Free-form event payload (conversation id, message preview, ...)
	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`

	IsRead    bool      `gorm:"default:false" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`

	User  User `gorm:"foreignKey:UserID" json:"-"`
	Actor User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return
}
