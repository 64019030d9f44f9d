package journeys

import (
	"errors"
	"fmt"

	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/service/achievements"
	"github.com/treeroute/treeroute/internal/service/emissions"
)

// Validation and lookup errors. Mode and distance problems surface as
// emissions.ErrInvalidMode and emissions.ErrInvalidDistance.
var (
	ErrInvalidLocation = errors.New("origin and destination are required")
	ErrUserNotFound    = errors.New("user not found")
)

// Persistence operations reported in PersistenceError.Op.
const (
	OpLock     = "lock"
	OpLoadUser = "load_user"
	OpInsert   = "insert_journey"
	OpUpdate   = "update_user"
	OpEvaluate = "evaluate_achievements"
	OpCommit   = "commit"
	OpList     = "list_journeys"
)

// PersistenceError reports a failed storage operation. A failed submission
// leaves nothing behind: the whole transaction is rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("journey %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Submission is one journey as sent by a client. RouteDistanceKm, when
// positive, takes priority over DistanceKm.
type Submission struct {
	Mode             string   `json:"mode"`
	DistanceKm       float64  `json:"distance_km"`
	RouteDistanceKm  *float64 `json:"route_distance_km,omitempty"`
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	RouteDurationMin *float64 `json:"route_duration_min,omitempty"`
}

// Comparison sets the journey against driving the same distance.
type Comparison struct {
	CarCO2           float64            `json:"car_co2"`
	CarTime          float64            `json:"car_time"`
	CO2Saved         float64            `json:"co2_saved"`
	TreesEquivalent  float64            `json:"trees_equivalent"`
	PerModeBreakdown []emissions.Result `json:"per_mode_breakdown"`
}

// Gamification is the progression outcome of a journey.
type Gamification struct {
	XPEarned        int                       `json:"xp_earned"`
	TotalXP         int64                     `json:"total_xp"`
	Level           int                       `json:"level"`
	LevelName       string                    `json:"level_name"`
	LeveledUp       bool                      `json:"leveled_up"`
	XPToNextLevel   int64                     `json:"xp_to_next_level"`
	NewAchievements []achievements.Definition `json:"new_achievements"`
}

// Result is the envelope returned for a committed journey.
type Result struct {
	Journey      *models.Journey `json:"journey"`
	Comparison   Comparison      `json:"comparison"`
	Gamification Gamification    `json:"gamification"`
}

// Page is one page of a user's journey history, newest first.
type Page struct {
	Journeys []models.Journey `json:"journeys"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}
