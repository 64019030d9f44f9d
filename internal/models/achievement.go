package models

import (
	"time"
)

// UserAchievement records that a user unlocked an achievement.
// The (user_id, achievement_key) pair is unique; rows are never updated or deleted.
type UserAchievement struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID" json:"-"`
	AchievementKey string    `gorm:"not null;size:64;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_key"`
	UnlockedAt     time.Time `gorm:"not null" json:"unlocked_at"`
}

// TableName specifies the table name for UserAchievement model.
func (UserAchievement) TableName() string {
	return "user_achievements"
}
