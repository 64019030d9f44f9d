// Package achievements evaluates and records achievement unlocks.
package achievements

import (
	"context"
	"fmt"
	"time"

	prommetrics "github.com/treeroute/treeroute/internal/metrics"
	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/pkg/logger"
)

// JourneyReader reads the journey aggregates predicates depend on.
type JourneyReader interface {
	Totals(ctx context.Context, userID uint) (models.JourneyTotals, error)
	TotalsBetween(ctx context.Context, userID uint, from, to time.Time) (models.JourneyTotals, error)
	ModeTotals(ctx context.Context, userID uint) (map[models.Mode]models.JourneyTotals, error)
}

// UnlockStore persists unlock records.
type UnlockStore interface {
	ListByUser(ctx context.Context, userID uint) ([]models.UserAchievement, error)
	Unlock(ctx context.Context, userID uint, key string, at time.Time) (bool, error)
}

// UserLister lists every user for the backfill.
type UserLister interface {
	List(ctx context.Context) ([]models.User, error)
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repository.Repos) error) error
}

// Notifier announces unlocks.
type Notifier interface {
	AnnounceAchievement(username, name, icon, description string) error
}

// LoadStats reads the aggregates of a user as of now. The user row supplies
// the streak, so it must reflect the current transaction.
func LoadStats(ctx context.Context, journeys JourneyReader, user *models.User, now time.Time) (Stats, error) {
	totals, err := journeys.Totals(ctx, user.ID)
	if err != nil {
		return Stats{}, err
	}

	byMode, err := journeys.ModeTotals(ctx, user.ID)
	if err != nil {
		return Stats{}, err
	}

	today := models.DateOf(now)
	todayTotals, err := journeys.TotalsBetween(ctx, user.ID, today.Start(), today.End())
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalJourneys:  totals.Journeys,
		TotalDistance:  totals.DistanceKm,
		TotalCO2Saved:  totals.CO2Saved,
		TotalCalories:  totals.Calories,
		BikeJourneys:   byMode[models.ModeBike].Journeys,
		WalkDistanceKm: byMode[models.ModeWalk].DistanceKm,
		TodayJourneys:  todayTotals.Journeys,
		CurrentStreak:  user.CurrentStreak,
		LongestStreak:  user.LongestStreak,
	}, nil
}

// Evaluate unlocks every achievement the user now qualifies for and returns
// those that were newly recorded, in registry order. Already unlocked keys are
// skipped; the store's insert settles races so a key is reported once.
func Evaluate(ctx context.Context, journeys JourneyReader, unlocks UnlockStore, user *models.User, now time.Time) ([]Definition, error) {
	existing, err := unlocks.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked achievements: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, ua := range existing {
		have[ua.AchievementKey] = true
	}

	stats, err := LoadStats(ctx, journeys, user, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement stats: %w", err)
	}

	var unlocked []Definition
	for _, def := range registry {
		if have[def.Key] || !def.Met(stats) {
			continue
		}
		inserted, err := unlocks.Unlock(ctx, user.ID, def.Key, now)
		if err != nil {
			return nil, err
		}
		if inserted {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked, nil
}

// Service runs achievement evaluation outside the journey write path.
type Service struct {
	db       TxRunner
	users    UserLister
	notifier Notifier
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a new achievement service.
func NewService(db *repository.DB, notifier Notifier, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(db, db.Repos().Users, notifier, time.Now, log)
}

// NewServiceWithInterfaces creates a new achievement service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(db TxRunner, users UserLister, notifier Notifier, now func() time.Time, log *logger.Logger) *Service {
	return &Service{
		db:       db,
		users:    users,
		notifier: notifier,
		now:      now,
		log:      log,
	}
}

// EvaluateAllUsers re-evaluates every user and records missing unlocks.
// This is typically run as a scheduled job after the registry gains entries.
// Failures for one user are logged and do not stop the run.
// Returns the number of achievements unlocked.
func (s *Service) EvaluateAllUsers(ctx context.Context) (int, error) {
	s.log.Info().Msg("Starting achievement evaluation for all users")
	start := time.Now()

	users, err := s.users.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get users")
		return 0, fmt.Errorf("failed to get users: %w", err)
	}

	unlockCount := 0
	for i := range users {
		if err := ctx.Err(); err != nil {
			return unlockCount, err
		}

		user := &users[i]
		var unlocked []Definition
		err := s.db.InTx(ctx, func(r repository.Repos) error {
			fresh, err := r.Users.GetByIDForUpdate(ctx, user.ID)
			if err != nil {
				return err
			}
			*user = *fresh
			unlocked, err = Evaluate(ctx, r.Journeys, r.Achievements, user, s.now().UTC())
			return err
		})
		if err != nil {
			s.log.Error().
				Err(err).
				Uint("user_id", user.ID).
				Msg("Failed to evaluate achievements")
			continue
		}

		for _, def := range unlocked {
			unlockCount++
			prommetrics.RecordAchievementUnlocked(def.Key)
			s.log.Info().
				Uint("user_id", user.ID).
				Str("username", user.Username).
				Str("achievement", def.Key).
				Msg("Achievement unlocked by backfill")
			s.announce(user, def)
		}
	}

	s.log.Info().
		Int("users_evaluated", len(users)).
		Int("achievements_unlocked", unlockCount).
		Dur("duration", time.Since(start)).
		Msg("Achievement evaluation complete")

	return unlockCount, nil
}

func (s *Service) announce(user *models.User, def Definition) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.AnnounceAchievement(user.Username, def.Name, def.Icon, def.Description); err != nil {
		s.log.Warn().
			Err(err).
			Uint("user_id", user.ID).
			Str("achievement", def.Key).
			Msg("Failed to announce achievement")
	}
}
