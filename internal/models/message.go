package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// DeletedContentPlaceholder replaces the content of a soft-deleted message.
// The row persists so threading and reply references stay intact.
const DeletedContentPlaceholder = "This message was deleted"

// Attachment describes one stored file on a message. Files are uploaded
// ahead of the send; messages only carry the resolved descriptors.
type Attachment struct {
	Reference    string `json:"reference"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
}

type Message struct {
	ID             string `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string `gorm:"index;type:text;not null" json:"conversationId"`

	SenderID string `gorm:"index;type:text;not null" json:"senderId"`
	Content  string `gorm:"type:text" json:"content"`

	// text, image, file, system
	Type string `gorm:"type:text;default:'text';not null" json:"type"`

	// Ordered attachment descriptors, stored as a JSON document
	Attachments datatypes.JSON `gorm:"type:jsonb" json:"attachments,omitempty"`

	// Soft delete: content/attachments are redacted but the row persists.
	// gorm.DeletedAt is deliberately not used here because deleted messages
	// must still appear in listings.
	IsDeleted bool `gorm:"default:false" json:"isDeleted"`

	// Threading
	ReplyToID *string  `gorm:"type:text;index" json:"replyToId,omitempty"`
	ReplyTo   *Message `gorm:"-" json:"replyTo,omitempty"`

	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`

	Sender    User              `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReadBy    []MessageRead     `gorm:"foreignKey:MessageID" json:"readBy,omitempty"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// SetAttachments serializes descriptors into the JSON column.
func (m *Message) SetAttachments(attachments []Attachment) error {
	if len(attachments) == 0 {
		m.Attachments = nil
		return nil
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return err
	}
	m.Attachments = datatypes.JSON(raw)
	return nil
}

// GetAttachments deserializes the JSON column back into descriptors.
func (m *Message) GetAttachments() []Attachment {
	if len(m.Attachments) == 0 {
		return nil
	}
	var attachments []Attachment
	if err := json.Unmarshal(m.Attachments, &attachments); err != nil {
		return nil
	}
	return attachments
}

// MessageRead is one user's read receipt on a message. The composite key
// keeps the set monotonic: at most one entry per user, inserts are no-ops
// once present.
type MessageRead struct {
	MessageID string    `gorm:"primaryKey;type:text" json:"messageId"`
	UserID    string    `gorm:"primaryKey;type:text" json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

func (r *MessageRead) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ReadAt.IsZero() {
		r.ReadAt = time.Now()
	}
	return
}

// MessageReaction is a toggled (user, emoji) pair on a message.
type MessageReaction struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	MessageID string    `gorm:"index;type:text;not null;uniqueIndex:idx_unique_reaction" json:"messageId"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_unique_reaction" json:"userId"`
	Emoji     string    `gorm:"type:text;not null;uniqueIndex:idx_unique_reaction" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *MessageReaction) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
