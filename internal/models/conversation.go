package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a chat thread between a fixed, mutable set of participants:
// direct (2-party) or group.
type Conversation struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	IsGroup     bool   `gorm:"default:false" json:"isGroup"`
	Name        string `gorm:"type:text" json:"name,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// AdminID is set for groups only and must always be a current participant.
	AdminID *string `gorm:"type:text;index" json:"adminId,omitempty"`

	// DirectKey is the canonical sorted participant pair for direct
	// conversations ("a:b"), NULL for groups. The unique index is what makes
	// concurrent find-or-create converge on one row.
	DirectKey *string `gorm:"type:text;uniqueIndex" json:"-"`

	// LastMessageID is a weak reference kept for list previews. Conversation
	// order comes from messages.created_at, not from this field.
	LastMessageID *string    `gorm:"type:text" json:"lastMessageId,omitempty"`
	LastMessage   *Message   `gorm:"foreignKey:LastMessageID" json:"lastMessage,omitempty"`
	LastActivity  time.Time  `gorm:"index:idx_conversations_activity,sort:desc" json:"lastActivity"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.LastActivity.IsZero() {
		c.LastActivity = time.Now()
	}
	return
}

// DirectKeyFor builds the canonical uniqueness key for a direct conversation
// between two users: the sorted pair joined with ":".
func DirectKeyFor(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// ConversationParticipant is one user's membership row in a conversation.
// The composite key gives the participant list set semantics; the unread
// counter lives here so increments stay single-row atomic updates.
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text;index" json:"userId"`
	JoinedAt       time.Time `json:"joinedAt"`

	UnreadCount int        `gorm:"default:0" json:"unreadCount"`
	MutedUntil  *time.Time `json:"mutedUntil,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (p *ConversationParticipant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	return
}

// Muted reports whether the participant has an active mute at t.
func (p *ConversationParticipant) Muted(t time.Time) bool {
	return p.MutedUntil != nil && p.MutedUntil.After(t)
}
