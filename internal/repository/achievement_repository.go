package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/treeroute/treeroute/internal/models"
)

// AchievementRepository handles achievement unlock records.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Unlock records that a user unlocked an achievement. It reports false without
// error when the pair already exists, so concurrent unlocks insert one row.
func (r *AchievementRepository) Unlock(ctx context.Context, userID uint, key string, at time.Time) (bool, error) {
	record := &models.UserAchievement{
		UserID:         userID,
		AchievementKey: key,
		UnlockedAt:     at.UTC(),
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_key"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return false, fmt.Errorf("failed to unlock %s for user %d: %w", key, userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListByUser returns a user's unlocks, oldest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	var unlocks []models.UserAchievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC, id ASC").
		Find(&unlocks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements for user %d: %w", userID, err)
	}
	return unlocks, nil
}

// HoldersCount returns how many users unlocked an achievement.
func (r *AchievementRepository) HoldersCount(ctx context.Context, key string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserAchievement{}).
		Where("achievement_key = ?", key).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count holders of %s: %w", key, err)
	}
	return count, nil
}

// UnlockedSince returns unlocks recorded at or after since with their users.
func (r *AchievementRepository) UnlockedSince(ctx context.Context, since time.Time) ([]models.UserAchievement, error) {
	var unlocks []models.UserAchievement
	err := r.db.WithContext(ctx).
		Where("unlocked_at >= ?", since.UTC()).
		Preload("User").
		Order("unlocked_at DESC, id DESC").
		Find(&unlocks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent achievements: %w", err)
	}
	return unlocks, nil
}
