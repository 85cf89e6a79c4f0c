package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Username string `gorm:"uniqueIndex" json:"username"`
	Image    string `json:"image"`
	Bio      string `json:"bio"`
	Headline string `json:"headline"`

	// Postgres String Array
	Skills pq.StringArray `gorm:"type:text[]" json:"skills"`

	Password string `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// UserSummary is the minimal profile projection used to format participant
// and sender display data.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// Summary projects a User into its display fields. Falls back to the
// username when no display name is set.
func (u *User) Summary() UserSummary {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return UserSummary{
		ID:          u.ID,
		DisplayName: name,
		AvatarURL:   u.Image,
	}
}
