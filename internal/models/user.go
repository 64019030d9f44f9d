// Package models defines domain models for the journey progression engine.
package models

import (
	"time"
)

// User is a traveller and the owner of the progression aggregates.
// XP, level and streak fields are written only by the journey ledger.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Username        string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	XP              int64     `gorm:"column:xp;not null;default:0" json:"xp"`
	Level           int       `gorm:"not null;default:1" json:"level"`
	CurrentStreak   int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak   int       `gorm:"not null;default:0" json:"longest_streak"`
	LastJourneyDate *Date     `json:"last_journey_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}
