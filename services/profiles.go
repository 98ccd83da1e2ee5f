package services

import (
	"context"

	"warungsoal-progression/models"

	"gorm.io/gorm"
)

// ProfileService reads the local profiles mirror kept fresh by the sync worker.
type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// UserExists implements ProfileDirectory.
func (s *ProfileService) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).
		Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// displayName is the leaderboard label for a mirrored display name.
func displayName(name *string) string {
	if name == nil || *name == "" {
		return unknownDisplayName
	}
	return *name
}
