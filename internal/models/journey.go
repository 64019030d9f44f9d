package models

import (
	"time"
)

// Journey is one logged trip. Rows are append-only.
type Journey struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID" json:"-"`
	Origin         string    `gorm:"type:text;not null" json:"origin"`
	Destination    string    `gorm:"type:text;not null" json:"destination"`
	Mode           Mode      `gorm:"size:16;not null;index" json:"mode"`
	DistanceKm     float64   `gorm:"not null" json:"distance_km"`
	CO2Emitted     float64   `gorm:"column:co2_emitted;not null" json:"co2_emitted"`
	CO2Saved       float64   `gorm:"column:co2_saved;not null" json:"co2_saved"` // negative when worse than driving
	CaloriesBurned float64   `gorm:"not null" json:"calories_burned"`
	TravelTimeMin  float64   `gorm:"not null" json:"travel_time_min"`
	XPEarned       int       `gorm:"column:xp_earned;not null" json:"xp_earned"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Journey model.
func (Journey) TableName() string {
	return "journeys"
}

// JourneyTotals are the aggregate sums over a set of journeys.
type JourneyTotals struct {
	Journeys      int64   `gorm:"column:journeys" json:"journeys"`
	DistanceKm    float64 `gorm:"column:distance_km" json:"distance_km"`
	CO2Emitted    float64 `gorm:"column:co2_emitted" json:"co2_emitted_kg"`
	CO2Saved      float64 `gorm:"column:co2_saved" json:"co2_saved_kg"`
	Calories      float64 `gorm:"column:calories" json:"calories_burned"`
	TravelTimeMin float64 `gorm:"column:travel_time_min" json:"travel_time_min"`
	XPEarned      int64   `gorm:"column:xp_earned" json:"xp_earned"`
}
