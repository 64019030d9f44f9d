// Package streak tracks consecutive days of non-car travel.
package streak

import (
	"github.com/treeroute/treeroute/internal/models"
)

// State is the streak portion of a user's progression.
type State struct {
	Current     int
	Longest     int
	LastJourney *models.Date
}

// FromUser extracts the streak state of a user.
func FromUser(u *models.User) State {
	return State{
		Current:     u.CurrentStreak,
		Longest:     u.LongestStreak,
		LastJourney: u.LastJourneyDate,
	}
}

// Apply writes the state back onto a user.
func (s State) Apply(u *models.User) {
	u.CurrentStreak = s.Current
	u.LongestStreak = s.Longest
	u.LastJourneyDate = s.LastJourney
}

// Advance applies one journey made on today (a UTC calendar day) to the state.
// Car journeys neither extend nor break a streak, and a day is counted once.
// The boolean reports whether the state changed.
func Advance(s State, today models.Date, mode models.Mode) (State, bool) {
	if mode == models.ModeCar {
		return s, false
	}

	next := s
	switch {
	case s.LastJourney != nil && s.LastJourney.Equal(today):
		return s, false
	case s.LastJourney != nil && s.LastJourney.Equal(today.AddDays(-1)):
		next.Current = s.Current + 1
	default:
		next.Current = 1
	}

	next.Longest = max(s.Longest, next.Current)
	day := today
	next.LastJourney = &day
	return next, true
}

// Effective returns the streak as it stands on today: a streak whose last day
// is older than yesterday has lapsed and reads as 0. Stored state is untouched.
func Effective(s State, today models.Date) int {
	if s.LastJourney == nil {
		return 0
	}
	if s.LastJourney.Equal(today) || s.LastJourney.Equal(today.AddDays(-1)) {
		return s.Current
	}
	return 0
}
