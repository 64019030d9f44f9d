package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/internal/service/achievements"
	"github.com/treeroute/treeroute/pkg/logger"
	"github.com/treeroute/treeroute/test/testdb"
)

func addJourney(t *testing.T, db *repository.DB, j models.Journey) {
	t.Helper()
	j.Origin, j.Destination = "Home", "Office"
	require.NoError(t, db.Create(&j).Error)
}

func statsService(db *repository.DB, ranker Ranker) *StatsService {
	repos := db.Repos()
	return NewStatsServiceWithInterfaces(repos.Users, repos.Journeys, repos.Achievements, ranker,
		func() time.Time { return now }, logger.Nop())
}

func icons(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Icon)
	}
	return out
}

func TestGetUserStats(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	ada := testdb.CreateUser(t, db, "ada")
	rival := testdb.CreateUser(t, db, "rival")

	today := models.DateOf(now)
	ada.XP, ada.Level, ada.CurrentStreak, ada.LongestStreak, ada.LastJourneyDate = 150, 2, 2, 6, &today
	require.NoError(t, db.Repos().Users.UpdateProgress(ctx, ada))

	addJourney(t, db, models.Journey{UserID: ada.ID, Mode: models.ModeCar, DistanceKm: 4,
		CO2Emitted: 0.684, CO2Saved: -0.068, TravelTimeMin: 8, XPEarned: 3, CreatedAt: now.Add(-3 * time.Hour)})
	addJourney(t, db, models.Journey{UserID: ada.ID, Mode: models.ModeBus, DistanceKm: 6,
		CO2Emitted: 0.582, CO2Saved: 0.97, TravelTimeMin: 30, XPEarned: 20, CreatedAt: now.Add(-2 * time.Hour)})
	addJourney(t, db, models.Journey{UserID: ada.ID, Mode: models.ModeBike, DistanceKm: 5,
		CO2Saved: 0.855, CaloriesBurned: 140, TravelTimeMin: 20, XPEarned: 39, CreatedAt: now.Add(-time.Hour)})
	addJourney(t, db, models.Journey{UserID: ada.ID, Mode: models.ModeWalk, DistanceKm: 2,
		CO2Saved: 0.342, CaloriesBurned: 114, TravelTimeMin: 24, XPEarned: 20, CreatedAt: now.Add(-24 * time.Hour)})
	testdb.CreateJourney(t, db, rival.ID, models.ModeBike, 50, 8.55, now)

	_, err := db.Repos().Achievements.Unlock(ctx, ada.ID, achievements.KeyFirstSteps, now.Add(-24*time.Hour))
	require.NoError(t, err)

	board := NewServiceWithInterfaces(db.Repos().Users, db.Repos().Journeys, nil, 20, time.Minute,
		func() time.Time { return now }, logger.Nop())
	stats, err := statsService(db, board).GetUserStats(ctx, ada.ID)
	require.NoError(t, err)

	u := stats.User
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, int64(150), u.XP)
	assert.Equal(t, 2, u.Level)
	assert.Equal(t, "Sprout", u.LevelName)
	assert.Equal(t, 2, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)

	tot := stats.Totals
	assert.Equal(t, int64(4), tot.Journeys)
	assert.Equal(t, 17.0, tot.DistanceKm)
	assert.Equal(t, 1.27, tot.CO2EmittedKg)
	assert.Equal(t, 2.1, tot.CO2SavedKg)
	assert.Equal(t, 254.0, tot.CaloriesBurned)
	assert.Equal(t, 82.0, tot.TravelTimeMin)
	assert.Equal(t, int64(82), tot.XPEarned)
	assert.Equal(t, 0.1, tot.TreesEquivalent)
	require.NotNil(t, tot.TopCalorieMode)
	assert.Equal(t, models.ModeBike, *tot.TopCalorieMode)

	// Two green, one transit, one car.
	assert.Equal(t, 68, stats.SustainabilityScore)
	assert.Equal(t, 1, stats.Ecosystem.Level)

	assert.Len(t, stats.Achievements, len(achievements.Definitions()))
	for _, a := range stats.Achievements {
		assert.Equal(t, a.Key == achievements.KeyFirstSteps, a.Unlocked, a.Key)
	}
	assert.Len(t, stats.DailyChallenges, 3)

	assert.Equal(t, []string{"🚴", "🚶", "🛴", "🚴", "🔥", "🌳"}, icons(stats.Recommendations))
	assert.Contains(t, stats.Recommendations[0].Text, "~5.5kg CO₂ per month")
	assert.Contains(t, stats.Recommendations[1].Text, "about 48 minutes")
	assert.Contains(t, stats.Recommendations[2].Text, "~12 min")
	assert.Contains(t, stats.Recommendations[3].Text, "~168 calories")
	assert.Contains(t, stats.Recommendations[4].Text, "2-day streak")
	assert.Contains(t, stats.Recommendations[5].Text, "Save 18.9kg more")

	assert.Equal(t, 2, stats.CO2Rank)
}

func TestGetUserStats_LapsedStreakReadsZero(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	u := testdb.CreateUser(t, db, "lapsed")
	old := models.DateOf(now).AddDays(-3)
	u.CurrentStreak, u.LongestStreak, u.LastJourneyDate = 4, 4, &old
	require.NoError(t, db.Repos().Users.UpdateProgress(ctx, u))
	testdb.CreateJourney(t, db, u.ID, models.ModeWalk, 1, 0.171, now.Add(-72*time.Hour))

	stats, err := statsService(db, nil).GetUserStats(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.User.CurrentStreak)
	assert.Contains(t, icons(stats.Recommendations), "📅")
	assert.Equal(t, 0, stats.CO2Rank)
	assert.Nil(t, stats.Totals.TopCalorieMode)
}

func TestGetUserStats_NewUser(t *testing.T) {
	db := testdb.New(t)
	u := testdb.CreateUser(t, db, "fresh")

	stats, err := statsService(db, nil).GetUserStats(context.Background(), u.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.Totals.Journeys)
	assert.Equal(t, 0, stats.SustainabilityScore)
	assert.NotNil(t, stats.Recommendations)
	assert.Empty(t, stats.Recommendations)
	for _, a := range stats.Achievements {
		assert.False(t, a.Unlocked)
	}
}

func TestGetUserStats_UserNotFound(t *testing.T) {
	db := testdb.New(t)

	_, err := statsService(db, nil).GetUserStats(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

type failingRanker struct{}

func (failingRanker) RankOf(context.Context, Type, Period, uint) (int, error) {
	return 0, errors.New("cache down")
}

func TestGetUserStats_RankFailureIsNotFatal(t *testing.T) {
	db := testdb.New(t)
	u := testdb.CreateUser(t, db, "ada")

	stats, err := statsService(db, failingRanker{}).GetUserStats(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CO2Rank)
}

func TestSustainabilityScore(t *testing.T) {
	tests := []struct {
		name   string
		byMode map[models.Mode]models.JourneyTotals
		want   int
	}{
		{"no journeys", nil, 0},
		{"all green", map[models.Mode]models.JourneyTotals{
			models.ModeWalk: {Journeys: 2}, models.ModeEScooter: {Journeys: 1},
		}, 100},
		{"all car", map[models.Mode]models.JourneyTotals{models.ModeCar: {Journeys: 5}}, 0},
		{"transit only", map[models.Mode]models.JourneyTotals{models.ModeTrain: {Journeys: 4}}, 70},
		{"three green one car", map[models.Mode]models.JourneyTotals{
			models.ModeBike: {Journeys: 3}, models.ModeCar: {Journeys: 1},
		}, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SustainabilityScore(tt.byMode))
		})
	}
}

func TestEcosystemFor(t *testing.T) {
	tests := []struct {
		co2   float64
		level int
		emoji string
	}{
		{-3, 1, "🌱"},
		{9.99, 1, "🌱"},
		{10, 2, "🪴"},
		{50, 3, "🌿"},
		{199.9, 3, "🌿"},
		{200, 4, "🌲"},
		{500, 5, "🌳"},
	}

	for _, tt := range tests {
		got := EcosystemFor(tt.co2)
		assert.Equal(t, tt.level, got.Level, "co2 %v", tt.co2)
		assert.Equal(t, tt.emoji, got.Emoji, "co2 %v", tt.co2)
		assert.NotEmpty(t, got.Name)
	}
}

func TestRecommendations(t *testing.T) {
	t.Run("long car trips skip walking and scooters", func(t *testing.T) {
		byMode := map[models.Mode]models.JourneyTotals{models.ModeCar: {Journeys: 2, DistanceKm: 40}}
		recs := Recommendations(UserSummary{}, models.JourneyTotals{Journeys: 2}, byMode, 0)
		assert.Equal(t, []string{"🚴", "📅"}, icons(recs))
	})

	t.Run("long bus trips are not suggested for cycling", func(t *testing.T) {
		byMode := map[models.Mode]models.JourneyTotals{models.ModeBus: {Journeys: 1, DistanceKm: 12}}
		recs := Recommendations(UserSummary{CurrentStreak: 1, LongestStreak: 1}, models.JourneyTotals{Journeys: 1}, byMode, 70)
		assert.Empty(t, recs)
	})

	t.Run("low score nudges", func(t *testing.T) {
		recs := Recommendations(UserSummary{CurrentStreak: 3, LongestStreak: 3}, models.JourneyTotals{Journeys: 3, CO2Saved: 30}, nil, 40)
		assert.Equal(t, []string{"🌱"}, icons(recs))
		assert.Contains(t, recs[0].Text, "40%")
	})

	t.Run("low score needs three journeys", func(t *testing.T) {
		recs := Recommendations(UserSummary{CurrentStreak: 1, LongestStreak: 1}, models.JourneyTotals{Journeys: 2, CO2Saved: 30}, nil, 40)
		assert.Empty(t, recs)
	})

	t.Run("high score praises", func(t *testing.T) {
		recs := Recommendations(UserSummary{CurrentStreak: 8, LongestStreak: 8}, models.JourneyTotals{Journeys: 10, CO2Saved: 25}, nil, 80)
		assert.Equal(t, []string{"🌟"}, icons(recs))
		assert.Contains(t, recs[0].Text, "80%")
	})
}
