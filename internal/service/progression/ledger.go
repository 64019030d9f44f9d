// Package progression derives XP and levels from journeys.
package progression

import (
	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/service/emissions"
)

// Indexed by models.Mode.
var multipliers = [...]float64{
	models.ModeCar:      0.25,
	models.ModeBus:      0.5,
	models.ModeTrain:    0.75,
	models.ModeBike:     2.0,
	models.ModeWalk:     2.0,
	models.ModeEScooter: 2.0,
}

var _ = [1]struct{}{}[len(multipliers)-(models.NumModes+1)]

// Level is one rung of the progression ladder.
type Level struct {
	Number    int    `json:"level"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

var levels = []Level{
	{1, "Seedling", 0},
	{2, "Sprout", 100},
	{3, "Sapling", 300},
	{4, "Young Tree", 600},
	{5, "Growing Oak", 1000},
	{6, "Forest Guardian", 1600},
	{7, "Eco Warrior", 2400},
	{8, "Nature Champion", 3500},
	{9, "Earth Protector", 5000},
	{10, "Planet Hero", 7000},
}

// MaxLevel is the highest reachable level.
var MaxLevel = len(levels)

// Multiplier returns the XP multiplier for a mode, 0 for unknown modes.
func Multiplier(mode models.Mode) float64 {
	if !mode.Valid() {
		return 0
	}
	return multipliers[mode]
}

// XPForJourney returns the XP earned by one journey. co2Saved must already be
// rounded. The result is always at least 1.
func XPForJourney(distanceKm, co2Saved float64, mode models.Mode) int {
	base := emissions.RoundInt(10 + distanceKm*2 + max(0, co2Saved)*5)
	return max(1, emissions.RoundInt(float64(base)*Multiplier(mode)))
}

// LevelForXP returns the level reached with the given cumulative XP.
func LevelForXP(xp int64) int {
	level := 1
	for i, l := range levels {
		if xp >= l.Threshold {
			level = i + 1
		}
	}
	return level
}

// LevelInfo returns the ladder entry for a level, clamped to [1, MaxLevel].
func LevelInfo(level int) Level {
	level = min(max(level, 1), MaxLevel)
	return levels[level-1]
}

// LevelName returns the display name of a level.
func LevelName(level int) string {
	return LevelInfo(level).Name
}

// XPToNextLevel returns the XP still needed for the next level, 0 at the top.
func XPToNextLevel(xp int64) int64 {
	level := LevelForXP(xp)
	if level >= MaxLevel {
		return 0
	}
	return max(0, levels[level].Threshold-xp)
}

// Levels returns a copy of the ladder.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// Progress describes where cumulative XP sits on the ladder.
type Progress struct {
	XP             int64  `json:"xp"`
	Level          int    `json:"level"`
	LevelName      string `json:"level_name"`
	XPToNextLevel  int64  `json:"xp_to_next_level"`
	XPCurrentLevel int64  `json:"xp_current_level"`
	XPNextLevel    int64  `json:"xp_next_level"`
}

// ProgressFor computes the ladder position for cumulative XP. At the top level
// XPNextLevel equals XPCurrentLevel.
func ProgressFor(xp int64) Progress {
	level := LevelForXP(xp)
	current := levels[level-1]
	next := current
	if level < MaxLevel {
		next = levels[level]
	}
	return Progress{
		XP:             xp,
		Level:          level,
		LevelName:      current.Name,
		XPToNextLevel:  XPToNextLevel(xp),
		XPCurrentLevel: current.Threshold,
		XPNextLevel:    next.Threshold,
	}
}
