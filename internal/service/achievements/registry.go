package achievements

import (
	"time"

	"github.com/treeroute/treeroute/internal/models"
)

// Stats is the aggregate view of a user that achievement predicates read.
type Stats struct {
	TotalJourneys  int64
	TotalDistance  float64
	TotalCO2Saved  float64
	TotalCalories  float64
	BikeJourneys   int64
	WalkDistanceKm float64
	TodayJourneys  int64
	CurrentStreak  int
	LongestStreak  int
}

// Definition is one achievement of the fixed registry.
type Definition struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"desc"`

	met func(Stats) bool
}

// Met reports whether the stats satisfy the achievement.
func (d Definition) Met(s Stats) bool {
	return d.met(s)
}

// Achievement keys.
const (
	KeyFirstSteps    = "first_steps"
	KeyHotStreak     = "hot_streak"
	KeyWeekWarrior   = "week_warrior"
	KeyMonthMaster   = "month_master"
	KeyPedalPower    = "pedal_power"
	KeyWalkingLegend = "walking_legend"
	KeyCarbonCrusher = "carbon_crusher"
	KeyCenturyClub   = "century_club"
	KeyCalorieBurner = "calorie_burner"
	KeyDistanceKing  = "distance_king"
	KeyFiveADay      = "five_a_day"
	KeySpeedDemon    = "speed_demon"
)

var registry = []Definition{
	{KeyFirstSteps, "First Steps", "🏃", "Log your first journey",
		func(s Stats) bool { return s.TotalJourneys >= 1 }},
	{KeyHotStreak, "Hot Streak", "🔥", "3-day sustainable streak",
		func(s Stats) bool { return s.CurrentStreak >= 3 }},
	{KeyWeekWarrior, "Week Warrior", "🌿", "7-day streak",
		func(s Stats) bool { return s.CurrentStreak >= 7 }},
	{KeyMonthMaster, "Month Master", "🏆", "30-day streak",
		func(s Stats) bool { return s.CurrentStreak >= 30 }},
	{KeyPedalPower, "Pedal Power", "🚴", "10 bike journeys",
		func(s Stats) bool { return s.BikeJourneys >= 10 }},
	{KeyWalkingLegend, "Walking Legend", "👟", "50km walked",
		func(s Stats) bool { return s.WalkDistanceKm >= 50 }},
	{KeyCarbonCrusher, "Carbon Crusher", "🌍", "Save 20kg CO2",
		func(s Stats) bool { return s.TotalCO2Saved >= 20 }},
	{KeyCenturyClub, "Century Club", "💯", "Save 100kg CO2",
		func(s Stats) bool { return s.TotalCO2Saved >= 100 }},
	{KeyCalorieBurner, "Calorie Burner", "🔥", "Burn 1000 calories",
		func(s Stats) bool { return s.TotalCalories >= 1000 }},
	{KeyDistanceKing, "Distance King", "📏", "200km total distance",
		func(s Stats) bool { return s.TotalDistance >= 200 }},
	{KeyFiveADay, "Five-a-Day", "🎯", "5 journeys in one day",
		func(s Stats) bool { return s.TodayJourneys >= 5 }},
	{KeySpeedDemon, "Speed Demon", "⚡", "10 journeys logged",
		func(s Stats) bool { return s.TotalJourneys >= 10 }},
}

// Definitions returns the registry in display order.
func Definitions() []Definition {
	out := make([]Definition, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a definition by key.
func Lookup(key string) (Definition, bool) {
	for _, d := range registry {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Status is a definition with the user's unlock state.
type Status struct {
	Definition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Catalog lists every achievement with its unlock state. Unlock rows for keys
// that are no longer registered are ignored.
func Catalog(unlocked []models.UserAchievement) []Status {
	at := make(map[string]time.Time, len(unlocked))
	for _, ua := range unlocked {
		at[ua.AchievementKey] = ua.UnlockedAt
	}

	out := make([]Status, 0, len(registry))
	for _, d := range registry {
		st := Status{Definition: d}
		if t, ok := at[d.Key]; ok {
			st.Unlocked = true
			st.UnlockedAt = &t
		}
		out = append(out, st)
	}
	return out
}
