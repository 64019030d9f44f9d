package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/treeroute/treeroute/internal/models"
)

// Columns accepted by the ranking queries.
const (
	ColumnXP            = "xp"
	ColumnCurrentStreak = "current_streak"
	ColumnLongestStreak = "longest_streak"
	ColumnCO2Saved      = "co2_saved"
	ColumnDistanceKm    = "distance_km"
	ColumnXPEarned      = "xp_earned"
)

var (
	rankableUserColumns = map[string]bool{
		ColumnXP:            true,
		ColumnCurrentStreak: true,
		ColumnLongestStreak: true,
	}
	rankableJourneyColumns = map[string]bool{
		ColumnCO2Saved:   true,
		ColumnDistanceKm: true,
		ColumnXPEarned:   true,
	}
)

// RankedRow is one user's value in a ranking query.
type RankedRow struct {
	UserID   uint    `gorm:"column:user_id"`
	Username string  `gorm:"column:username"`
	Level    int     `gorm:"column:level"`
	Value    float64 `gorm:"column:value"`
}

const totalsSelect = "COUNT(*) AS journeys, " +
	"COALESCE(SUM(distance_km), 0) AS distance_km, " +
	"COALESCE(SUM(co2_emitted), 0) AS co2_emitted, " +
	"COALESCE(SUM(co2_saved), 0) AS co2_saved, " +
	"COALESCE(SUM(calories_burned), 0) AS calories, " +
	"COALESCE(SUM(travel_time_min), 0) AS travel_time_min, " +
	"COALESCE(SUM(xp_earned), 0) AS xp_earned"

// JourneyRepository handles journey-related database operations.
type JourneyRepository struct {
	db *DB
}

// NewJourneyRepository creates a new journey repository.
func NewJourneyRepository(db *DB) *JourneyRepository {
	return &JourneyRepository{db: db}
}

// Create appends a journey.
func (r *JourneyRepository) Create(ctx context.Context, journey *models.Journey) error {
	if err := r.db.WithContext(ctx).Create(journey).Error; err != nil {
		return fmt.Errorf("failed to create journey: %w", err)
	}
	return nil
}

// ListByUser returns a page of a user's journeys, newest first, and the total count.
func (r *JourneyRepository) ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.Journey, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Journey{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count journeys for user %d: %w", userID, err)
	}

	var journeys []models.Journey
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&journeys).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list journeys for user %d: %w", userID, err)
	}
	return journeys, total, nil
}

// ListBetween returns a user's journeys created in [from, to), oldest first.
func (r *JourneyRepository) ListBetween(ctx context.Context, userID uint, from, to time.Time) ([]models.Journey, error) {
	var journeys []models.Journey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from.UTC(), to.UTC()).
		Order("created_at ASC, id ASC").
		Find(&journeys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list journeys for user %d: %w", userID, err)
	}
	return journeys, nil
}

// Totals sums all of a user's journeys.
func (r *JourneyRepository) Totals(ctx context.Context, userID uint) (models.JourneyTotals, error) {
	var totals models.JourneyTotals
	err := r.db.WithContext(ctx).
		Model(&models.Journey{}).
		Select(totalsSelect).
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return models.JourneyTotals{}, fmt.Errorf("failed to sum journeys for user %d: %w", userID, err)
	}
	return totals, nil
}

// TotalsBetween sums a user's journeys created in [from, to).
func (r *JourneyRepository) TotalsBetween(ctx context.Context, userID uint, from, to time.Time) (models.JourneyTotals, error) {
	var totals models.JourneyTotals
	err := r.db.WithContext(ctx).
		Model(&models.Journey{}).
		Select(totalsSelect).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from.UTC(), to.UTC()).
		Scan(&totals).Error
	if err != nil {
		return models.JourneyTotals{}, fmt.Errorf("failed to sum journeys for user %d: %w", userID, err)
	}
	return totals, nil
}

type modeTotalsRow struct {
	Mode models.Mode `gorm:"column:mode"`
	models.JourneyTotals
}

// ModeTotals sums a user's journeys per transport mode. Modes without
// journeys are absent from the map.
func (r *JourneyRepository) ModeTotals(ctx context.Context, userID uint) (map[models.Mode]models.JourneyTotals, error) {
	var rows []modeTotalsRow
	err := r.db.WithContext(ctx).
		Model(&models.Journey{}).
		Select("mode, " + totalsSelect).
		Where("user_id = ?", userID).
		Group("mode").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum journeys by mode for user %d: %w", userID, err)
	}

	out := make(map[models.Mode]models.JourneyTotals, len(rows))
	for _, row := range rows {
		out[row.Mode] = row.JourneyTotals
	}
	return out, nil
}

// RankedSums orders every user by the sum of a journey column over journeys
// created at or after since. A zero since covers all time. Users without
// journeys rank with a value of 0.
func (r *JourneyRepository) RankedSums(ctx context.Context, column string, since time.Time) ([]RankedRow, error) {
	if !rankableJourneyColumns[column] {
		return nil, fmt.Errorf("cannot rank journeys by %q", column)
	}

	join := "LEFT JOIN journeys ON journeys.user_id = users.id"
	var args []interface{}
	if !since.IsZero() {
		join += " AND journeys.created_at >= ?"
		args = append(args, since.UTC())
	}

	var rows []RankedRow
	err := r.db.WithContext(ctx).
		Table("users").
		Select("users.id AS user_id, users.username, users.level, "+
			"COALESCE(SUM(journeys."+column+"), 0) AS value").
		Joins(join, args...).
		Group("users.id, users.username, users.level").
		Order("value DESC, users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank users by %s: %w", column, err)
	}
	return rows, nil
}
