package services

import (
	"context"
	"time"

	"github.com/saem16/professional-networking-platform-sub001/internal/database"
	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"gorm.io/gorm"
)

const summaryCacheTTL = 5 * time.Minute

// UserService resolves the basic profile fields the chat core needs to
// format participant and sender display data.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// LookupSummary returns {id, displayName, avatarUrl} for a user, cached in
// Redis since summaries decorate every message fan-out.
func (s *UserService) LookupSummary(ctx context.Context, userID string) (models.UserSummary, error) {
	cacheKey := "user_summary:" + userID

	var summary models.UserSummary
	if database.Redis != nil {
		if err := database.CacheGet(cacheKey, &summary); err == nil && summary.ID != "" {
			return summary, nil
		}
	}

	var user models.User
	if err := s.db.WithContext(ctx).
		Select("id", "name", "username", "image").
		First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.UserSummary{}, apperrors.NotFound("user not found")
		}
		return models.UserSummary{}, err
	}

	summary = user.Summary()
	if database.Redis != nil {
		database.CacheSet(cacheKey, summary, summaryCacheTTL)
	}
	return summary, nil
}

// InvalidateSummary drops a user's cached summary after a profile change.
func (s *UserService) InvalidateSummary(userID string) {
	if database.Redis != nil {
		database.CacheInvalidate("user_summary:" + userID)
	}
}
