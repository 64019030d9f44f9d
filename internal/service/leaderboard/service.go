// Package leaderboard provides leaderboard and ranking services.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	prommetrics "github.com/treeroute/treeroute/internal/metrics"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/internal/service/emissions"
	"github.com/treeroute/treeroute/pkg/logger"
)

// CachePrefix prefixes every cached ranking.
const CachePrefix = "leaderboard:"

const week = 7 * 24 * time.Hour

// Type is what a leaderboard ranks by.
type Type string

// Leaderboard types.
const (
	TypeCO2      Type = "co2"
	TypeDistance Type = "distance"
	TypeStreak   Type = "streak"
	TypeXP       Type = "xp"
)

// Period is the time window of a leaderboard.
type Period string

// Leaderboard periods.
const (
	PeriodAll  Period = "all"
	PeriodWeek Period = "week"
)

// Parse errors.
var (
	ErrInvalidType   = errors.New("invalid leaderboard type")
	ErrInvalidPeriod = errors.New("invalid leaderboard period")
)

// ParseType parses a leaderboard type; empty means co2.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case "":
		return TypeCO2, nil
	case TypeCO2, TypeDistance, TypeStreak, TypeXP:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q (valid: co2, distance, streak, xp)", ErrInvalidType, s)
}

// ParsePeriod parses a leaderboard period; empty means all.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodWeek:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (valid: all, week)", ErrInvalidPeriod, s)
}

// Unit returns the display unit of the ranked value.
func (t Type) Unit() string {
	switch t {
	case TypeCO2:
		return "kg CO₂"
	case TypeDistance:
		return "km"
	case TypeXP:
		return "XP"
	case TypeStreak:
		return "days"
	}
	return ""
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	Rank          int     `json:"rank"`
	UserID        uint    `json:"-"`
	Username      string  `json:"username"`
	Level         int     `json:"level"`
	Value         float64 `json:"value"`
	IsCurrentUser bool    `json:"is_current_user"`
}

// Board is a ranked leaderboard as seen by one caller.
type Board struct {
	Type     Type    `json:"type"`
	Period   Period  `json:"period"`
	Unit     string  `json:"unit"`
	Entries  []Entry `json:"entries"`
	UserRank *int    `json:"user_rank"`
}

// UserRanker ranks users by a column of their own row.
type UserRanker interface {
	RankedBy(ctx context.Context, column string) ([]repository.RankedRow, error)
}

// JourneyRanker ranks users by a sum over their journeys.
type JourneyRanker interface {
	RankedSums(ctx context.Context, column string, since time.Time) ([]repository.RankedRow, error)
}

// Cache stores computed rankings.
type Cache interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, expiration time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Service handles leaderboard generation.
type Service struct {
	users    UserRanker
	journeys JourneyRanker
	cache    Cache
	limit    int
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a new leaderboard service. cache may be nil.
func NewService(db *repository.DB, cache Cache, limit int, ttl time.Duration, log *logger.Logger) *Service {
	repos := db.Repos()
	return NewServiceWithInterfaces(repos.Users, repos.Journeys, cache, limit, ttl, time.Now, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	users UserRanker,
	journeys JourneyRanker,
	cache Cache,
	limit int,
	ttl time.Duration,
	now func() time.Time,
	log *logger.Logger,
) *Service {
	return &Service{
		users:    users,
		journeys: journeys,
		cache:    cache,
		limit:    limit,
		ttl:      ttl,
		now:      now,
		log:      log,
	}
}

// Get returns the top entries of a leaderboard. The caller's entry is flagged
// and UserRank is their position in the full ranking (nil for anonymous callers).
func (s *Service) Get(ctx context.Context, t Type, p Period, callerID uint) (*Board, error) {
	ranking, err := s.ranking(ctx, t, p)
	if err != nil {
		return nil, err
	}

	board := &Board{
		Type:    t,
		Period:  p,
		Unit:    t.Unit(),
		Entries: make([]Entry, 0, min(len(ranking), s.limit)),
	}
	for i, e := range ranking {
		current := callerID != 0 && e.UserID == callerID
		if current {
			rank := e.Rank
			board.UserRank = &rank
		}
		if i < s.limit {
			e.IsCurrentUser = current
			board.Entries = append(board.Entries, e)
		}
	}
	return board, nil
}

// Top returns the first limit entries of a leaderboard.
func (s *Service) Top(ctx context.Context, t Type, p Period, limit int) ([]Entry, error) {
	ranking, err := s.ranking(ctx, t, p)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

// RankOf returns the position of a user in a leaderboard, or 0 when absent.
func (s *Service) RankOf(ctx context.Context, t Type, p Period, userID uint) (int, error) {
	ranking, err := s.ranking(ctx, t, p)
	if err != nil {
		return 0, err
	}
	for _, e := range ranking {
		if e.UserID == userID {
			return e.Rank, nil
		}
	}
	return 0, nil
}

// Invalidate drops every cached ranking.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeletePrefix(ctx, CachePrefix)
}

// cachedEntry keeps the user ID, which Entry hides from clients.
type cachedEntry struct {
	Entry
	UserID uint `json:"user_id"`
}

// ranking returns the full ranking, from cache when possible.
func (s *Service) ranking(ctx context.Context, t Type, p Period) ([]Entry, error) {
	key := CachePrefix + string(t) + ":" + string(p)

	if s.cache != nil {
		var cached []cachedEntry
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to read leaderboard cache")
		}
		prommetrics.RecordLeaderboardCache(hit)
		if hit {
			out := make([]Entry, len(cached))
			for i, c := range cached {
				out[i] = c.Entry
				out[i].UserID = c.UserID
			}
			return out, nil
		}
	}

	rows, err := s.query(ctx, t, p)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			Rank:     i + 1,
			UserID:   r.UserID,
			Username: r.Username,
			Level:    r.Level,
			Value:    emissions.Round(r.Value, emissions.BoardValueDecimals),
		}
	}

	if s.cache != nil {
		cached := make([]cachedEntry, len(entries))
		for i, e := range entries {
			cached[i] = cachedEntry{Entry: e, UserID: e.UserID}
		}
		if err := s.cache.SetJSON(ctx, key, cached, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to write leaderboard cache")
		}
	}

	return entries, nil
}

// query maps a leaderboard onto a ranking query. Streaks rank the current
// streak over the week and the longest streak over all time; xp ranks stored
// XP over all time and XP earned over the week.
func (s *Service) query(ctx context.Context, t Type, p Period) ([]repository.RankedRow, error) {
	var since time.Time
	if p == PeriodWeek {
		since = s.now().Add(-week)
	}

	switch t {
	case TypeCO2:
		return s.journeys.RankedSums(ctx, repository.ColumnCO2Saved, since)
	case TypeDistance:
		return s.journeys.RankedSums(ctx, repository.ColumnDistanceKm, since)
	case TypeXP:
		if p == PeriodWeek {
			return s.journeys.RankedSums(ctx, repository.ColumnXPEarned, since)
		}
		return s.users.RankedBy(ctx, repository.ColumnXP)
	case TypeStreak:
		if p == PeriodWeek {
			return s.users.RankedBy(ctx, repository.ColumnCurrentStreak)
		}
		return s.users.RankedBy(ctx, repository.ColumnLongestStreak)
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
}
