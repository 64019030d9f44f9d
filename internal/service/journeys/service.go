// Package journeys records journeys and applies their progression effects.
//
// A submission is validated, priced by the emissions calculator and then
// written in one transaction together with the XP, level, streak and
// achievement changes it causes. Submissions of the same user are serialized
// by a Locker and, on PostgreSQL, by a row lock on the user.
package journeys

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/treeroute/treeroute/internal/lock"
	prommetrics "github.com/treeroute/treeroute/internal/metrics"
	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/internal/service/achievements"
	"github.com/treeroute/treeroute/internal/service/emissions"
	"github.com/treeroute/treeroute/internal/service/progression"
	"github.com/treeroute/treeroute/internal/service/streak"
	"github.com/treeroute/treeroute/pkg/logger"
)

const (
	maxLabelLength = 200

	defaultPageSize = 20
	maxPageSize     = 100
)

// Store runs work inside a database transaction.
type Store interface {
	InTx(ctx context.Context, fn func(repository.Repos) error) error
}

// HistoryReader pages through a user's journeys.
type HistoryReader interface {
	ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.Journey, int64, error)
}

// Invalidator drops cached data derived from journeys.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Notifier announces progression events.
type Notifier interface {
	AnnounceAchievement(username, name, icon, description string) error
	AnnounceLevelUp(username string, level int, levelName string) error
}

// Service handles journey submissions and history.
type Service struct {
	store       Store
	history     HistoryReader
	locker      lock.Locker
	invalidator Invalidator
	notifier    Notifier
	sanitizer   *bluemonday.Policy
	now         func() time.Time
	log         *logger.Logger
}

// NewService creates a new journey service. invalidator and notifier may be nil.
func NewService(db *repository.DB, locker lock.Locker, invalidator Invalidator, notifier Notifier, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(db, db.Repos().Journeys, locker, invalidator, notifier, time.Now, log)
}

// NewServiceWithInterfaces creates a new journey service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	store Store,
	history HistoryReader,
	locker lock.Locker,
	invalidator Invalidator,
	notifier Notifier,
	now func() time.Time,
	log *logger.Logger,
) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Service{
		store:       store,
		history:     history,
		locker:      locker,
		invalidator: invalidator,
		notifier:    notifier,
		sanitizer:   bluemonday.StrictPolicy(),
		now:         now,
		log:         log,
	}
}

// Submit validates and records a journey for a user.
func (s *Service) Submit(ctx context.Context, userID uint, sub Submission) (*Result, error) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveSubmissionDuration(time.Since(start).Seconds())
	}()

	mode, err := emissions.ParseMode(sub.Mode)
	if err != nil {
		prommetrics.RecordJourneyRejected("invalid_mode")
		return nil, err
	}

	origin, destination := s.cleanLabel(sub.Origin), s.cleanLabel(sub.Destination)
	if origin == "" || destination == "" {
		prommetrics.RecordJourneyRejected("invalid_location")
		return nil, ErrInvalidLocation
	}

	distance := sub.DistanceKm
	if sub.RouteDistanceKm != nil && emissions.ValidateDistance(*sub.RouteDistanceKm) == nil {
		distance = *sub.RouteDistanceKm
	}

	impact, err := emissions.Calculate(distance, mode, sub.RouteDurationMin)
	if err != nil {
		prommetrics.RecordJourneyRejected("invalid_distance")
		return nil, err
	}
	breakdown, err := emissions.Breakdown(distance)
	if err != nil {
		return nil, err
	}
	carCO2, carTime := emissions.CarBaseline(distance)
	xpEarned := progression.XPForJourney(impact.DistanceKm, impact.CO2Saved, mode)

	unlock, err := s.locker.Lock(ctx, "user:"+strconv.FormatUint(uint64(userID), 10))
	if err != nil {
		prommetrics.RecordPersistenceFailure(OpLock)
		return nil, &PersistenceError{Op: OpLock, Err: err}
	}
	defer unlock()

	now := s.now().UTC()
	journey := &models.Journey{
		UserID:         userID,
		Origin:         origin,
		Destination:    destination,
		Mode:           mode,
		DistanceKm:     impact.DistanceKm,
		CO2Emitted:     impact.CO2Emitted,
		CO2Saved:       impact.CO2Saved,
		CaloriesBurned: impact.Calories,
		TravelTimeMin:  impact.TravelTimeMin,
		XPEarned:       xpEarned,
		CreatedAt:      now,
	}

	var (
		user     models.User
		oldLevel int
		unlocked []achievements.Definition
	)
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		u, err := r.Users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
			}
			return &PersistenceError{Op: OpLoadUser, Err: err}
		}
		oldLevel = u.Level

		if err := r.Journeys.Create(ctx, journey); err != nil {
			return &PersistenceError{Op: OpInsert, Err: err}
		}

		u.XP += int64(xpEarned)
		u.Level = progression.LevelForXP(u.XP)
		if next, changed := streak.Advance(streak.FromUser(u), models.DateOf(now), mode); changed {
			next.Apply(u)
		}
		if err := r.Users.UpdateProgress(ctx, u); err != nil {
			return &PersistenceError{Op: OpUpdate, Err: err}
		}

		unlocked, err = achievements.Evaluate(ctx, r.Journeys, r.Achievements, u, now)
		if err != nil {
			return &PersistenceError{Op: OpEvaluate, Err: err}
		}

		user = *u
		return nil
	})
	unlock()
	if err != nil {
		return nil, s.failed(userID, err)
	}

	leveledUp := user.Level > oldLevel
	s.afterCommit(ctx, &user, journey, leveledUp, unlocked)

	if unlocked == nil {
		unlocked = []achievements.Definition{}
	}
	return &Result{
		Journey: journey,
		Comparison: Comparison{
			CarCO2:           carCO2,
			CarTime:          carTime,
			CO2Saved:         impact.CO2Saved,
			TreesEquivalent:  emissions.TreesEquivalent(impact.CO2Saved),
			PerModeBreakdown: breakdown,
		},
		Gamification: Gamification{
			XPEarned:        xpEarned,
			TotalXP:         user.XP,
			Level:           user.Level,
			LevelName:       progression.LevelName(user.Level),
			LeveledUp:       leveledUp,
			XPToNextLevel:   progression.XPToNextLevel(user.XP),
			NewAchievements: unlocked,
		},
	}, nil
}

// failed classifies a transaction error.
func (s *Service) failed(userID uint, err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return err
	}

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		pe = &PersistenceError{Op: OpCommit, Err: err}
	}
	prommetrics.RecordPersistenceFailure(pe.Op)
	s.log.Error().
		Err(pe.Err).
		Uint("user_id", userID).
		Str("op", pe.Op).
		Msg("Journey transaction rolled back")
	return pe
}

// afterCommit runs the side effects of a committed journey. None of them can
// fail the submission.
func (s *Service) afterCommit(ctx context.Context, user *models.User, journey *models.Journey, leveledUp bool, unlocked []achievements.Definition) {
	prommetrics.RecordJourney(journey.Mode.String(), journey.DistanceKm, journey.CO2Saved, journey.XPEarned)
	if leveledUp {
		prommetrics.RecordLevelUp(strconv.Itoa(user.Level))
	}
	for _, def := range unlocked {
		prommetrics.RecordAchievementUnlocked(def.Key)
	}

	s.log.Info().
		Uint("user_id", user.ID).
		Uint("journey_id", journey.ID).
		Str("mode", journey.Mode.String()).
		Float64("distance_km", journey.DistanceKm).
		Float64("co2_saved", journey.CO2Saved).
		Int("xp_earned", journey.XPEarned).
		Int64("total_xp", user.XP).
		Int("level", user.Level).
		Int("new_achievements", len(unlocked)).
		Msg("Journey recorded")

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
		}
	}

	if s.notifier == nil {
		return
	}
	if leveledUp {
		if err := s.notifier.AnnounceLevelUp(user.Username, user.Level, progression.LevelName(user.Level)); err != nil {
			s.log.Warn().Err(err).Uint("user_id", user.ID).Msg("Failed to announce level up")
		}
	}
	for _, def := range unlocked {
		if err := s.notifier.AnnounceAchievement(user.Username, def.Name, def.Icon, def.Description); err != nil {
			s.log.Warn().Err(err).Uint("user_id", user.ID).Str("achievement", def.Key).Msg("Failed to announce achievement")
		}
	}
}

// History returns one page of a user's journeys, newest first.
// page starts at 1; out of range values fall back to defaults.
func (s *Service) History(ctx context.Context, userID uint, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	journeys, total, err := s.history.ListByUser(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, &PersistenceError{Op: OpList, Err: err}
	}
	if journeys == nil {
		journeys = []models.Journey{}
	}

	return &Page{
		Journeys: journeys,
		Total:    total,
		Page:     page,
		Pages:    int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// cleanLabel strips markup from a place label and bounds its length.
func (s *Service) cleanLabel(label string) string {
	clean := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(label)))
	if utf8.RuneCountInString(clean) > maxLabelLength {
		clean = strings.TrimSpace(string([]rune(clean)[:maxLabelLength]))
	}
	return clean
}
