package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/internal/service/achievements"
	"github.com/treeroute/treeroute/internal/service/challenges"
	"github.com/treeroute/treeroute/internal/service/emissions"
	"github.com/treeroute/treeroute/internal/service/progression"
	"github.com/treeroute/treeroute/internal/service/streak"
	"github.com/treeroute/treeroute/pkg/logger"
)

// ErrUserNotFound is returned for stats of an unknown user.
var ErrUserNotFound = errors.New("user not found")

// Transit journeys count this much towards the sustainability score.
const transitWeight = 0.7

// UserSummary is a user's progression as displayed.
type UserSummary struct {
	Username string `json:"username"`
	progression.Progress
	CurrentStreak   int          `json:"current_streak"`
	LongestStreak   int          `json:"longest_streak"`
	LastJourneyDate *models.Date `json:"last_journey_date"`
}

// Totals are a user's lifetime journey sums, rounded for display.
type Totals struct {
	Journeys        int64        `json:"journeys"`
	DistanceKm      float64      `json:"distance_km"`
	CO2EmittedKg    float64      `json:"co2_emitted_kg"`
	CO2SavedKg      float64      `json:"co2_saved_kg"`
	CaloriesBurned  float64      `json:"calories_burned"`
	TravelTimeMin   float64      `json:"travel_time_min"`
	XPEarned        int64        `json:"xp_earned"`
	TreesEquivalent float64      `json:"trees_equivalent"`
	TopCalorieMode  *models.Mode `json:"top_calorie_mode"`
}

// Ecosystem is the cosmetic tier of cumulative CO2 saved.
type Ecosystem struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// UserStats represents comprehensive statistics for a user.
type UserStats struct {
	User                UserSummary           `json:"user"`
	Totals              Totals                `json:"totals"`
	SustainabilityScore int                   `json:"sustainability_score"`
	Ecosystem           Ecosystem             `json:"ecosystem"`
	Achievements        []achievements.Status `json:"achievements"`
	DailyChallenges     []challenges.Status   `json:"daily_challenges"`
	Recommendations     []Recommendation      `json:"recommendations"`
	CO2Rank             int                   `json:"co2_rank"`
}

// UserReader loads users.
type UserReader interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// JourneyStats reads the journey aggregates shown on the dashboard.
type JourneyStats interface {
	Totals(ctx context.Context, userID uint) (models.JourneyTotals, error)
	ModeTotals(ctx context.Context, userID uint) (map[models.Mode]models.JourneyTotals, error)
	ListBetween(ctx context.Context, userID uint, from, to time.Time) ([]models.Journey, error)
}

// UnlockReader lists a user's unlocked achievements.
type UnlockReader interface {
	ListByUser(ctx context.Context, userID uint) ([]models.UserAchievement, error)
}

// Ranker finds a user's leaderboard position.
type Ranker interface {
	RankOf(ctx context.Context, t Type, p Period, userID uint) (int, error)
}

// StatsService builds the per-user dashboard.
type StatsService struct {
	users    UserReader
	journeys JourneyStats
	unlocks  UnlockReader
	ranker   Ranker
	now      func() time.Time
	log      *logger.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(db *repository.DB, ranker Ranker, log *logger.Logger) *StatsService {
	repos := db.Repos()
	return NewStatsServiceWithInterfaces(repos.Users, repos.Journeys, repos.Achievements, ranker, time.Now, log)
}

// NewStatsServiceWithInterfaces creates a new stats service with interface dependencies (useful for testing).
func NewStatsServiceWithInterfaces(
	users UserReader,
	journeys JourneyStats,
	unlocks UnlockReader,
	ranker Ranker,
	now func() time.Time,
	log *logger.Logger,
) *StatsService {
	return &StatsService{
		users:    users,
		journeys: journeys,
		unlocks:  unlocks,
		ranker:   ranker,
		now:      now,
		log:      log,
	}
}

// GetUserStats returns comprehensive statistics for a user.
func (s *StatsService) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	totals, err := s.journeys.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get journey totals: %w", err)
	}
	byMode, err := s.journeys.ModeTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mode totals: %w", err)
	}
	unlocked, err := s.unlocks.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get achievements: %w", err)
	}

	today := models.DateOf(s.now())
	todays, err := s.journeys.ListBetween(ctx, userID, today.Start(), today.End())
	if err != nil {
		return nil, fmt.Errorf("failed to get today's journeys: %w", err)
	}

	state := streak.FromUser(user)
	summary := UserSummary{
		Username:        user.Username,
		Progress:        progression.ProgressFor(user.XP),
		CurrentStreak:   streak.Effective(state, today),
		LongestStreak:   user.LongestStreak,
		LastJourneyDate: user.LastJourneyDate,
	}

	score := SustainabilityScore(byMode)
	stats := &UserStats{
		User:                summary,
		Totals:              displayTotals(totals, byMode),
		SustainabilityScore: score,
		Ecosystem:           EcosystemFor(totals.CO2Saved),
		Achievements:        achievements.Catalog(unlocked),
		DailyChallenges:     challenges.StatusFor(today, userID, todays),
		Recommendations:     Recommendations(summary, totals, byMode, score),
	}

	if s.ranker != nil {
		rank, err := s.ranker.RankOf(ctx, TypeCO2, PeriodAll, userID)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get co2 rank")
		} else {
			stats.CO2Rank = rank
		}
	}

	return stats, nil
}

func displayTotals(t models.JourneyTotals, byMode map[models.Mode]models.JourneyTotals) Totals {
	out := Totals{
		Journeys:        t.Journeys,
		DistanceKm:      emissions.Round(t.DistanceKm, emissions.TotalDistanceDecimals),
		CO2EmittedKg:    emissions.Round(t.CO2Emitted, emissions.TotalKgDecimals),
		CO2SavedKg:      emissions.Round(t.CO2Saved, emissions.TotalKgDecimals),
		CaloriesBurned:  emissions.Round(t.Calories, emissions.TotalKcalDecimals),
		TravelTimeMin:   emissions.Round(t.TravelTimeMin, emissions.TotalMinutesDecimals),
		XPEarned:        t.XPEarned,
		TreesEquivalent: emissions.Round(t.CO2Saved/emissions.TreeAbsorptionKgPerYear, emissions.TotalTreesDecimals),
	}

	var best float64
	for _, mode := range models.Modes() {
		if cal := byMode[mode].Calories; cal > best {
			best = cal
			m := mode
			out.TopCalorieMode = &m
		}
	}
	return out
}

// SustainabilityScore weights green journeys fully and transit journeys at
// 0.7, as a percentage of all journeys capped at 100.
func SustainabilityScore(byMode map[models.Mode]models.JourneyTotals) int {
	var total, green, transit int64
	for mode, t := range byMode {
		total += t.Journeys
		switch {
		case mode.IsGreen():
			green += t.Journeys
		case mode.IsTransit():
			transit += t.Journeys
		}
	}
	if total == 0 {
		return 0
	}
	score := emissions.RoundInt((float64(green) + float64(transit)*transitWeight) / float64(total) * 100)
	return min(100, score)
}

// EcosystemFor returns the tier for cumulative kilograms of CO2 saved.
func EcosystemFor(co2SavedKg float64) Ecosystem {
	switch {
	case co2SavedKg >= 500:
		return Ecosystem{Level: 5, Name: "Thriving Rainforest", Emoji: "🌳"}
	case co2SavedKg >= 200:
		return Ecosystem{Level: 4, Name: "Dense Forest", Emoji: "🌲"}
	case co2SavedKg >= 50:
		return Ecosystem{Level: 3, Name: "Growing Woodland", Emoji: "🌿"}
	case co2SavedKg >= 10:
		return Ecosystem{Level: 2, Name: "Young Garden", Emoji: "🪴"}
	default:
		return Ecosystem{Level: 1, Name: "Barren Seedbed", Emoji: "🌱"}
	}
}
