// Package scheduler runs the periodic achievement backfill and leaderboard digest.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/treeroute/treeroute/internal/config"
	"github.com/treeroute/treeroute/internal/mattermost"
	prommetrics "github.com/treeroute/treeroute/internal/metrics"
	"github.com/treeroute/treeroute/internal/service/leaderboard"
	"github.com/treeroute/treeroute/pkg/logger"
)

// Job names used in metrics and logs.
const (
	JobAchievementBackfill = "achievement_backfill"
	JobLeaderboardDigest   = "leaderboard_digest"
)

// Backfiller re-evaluates achievements for every user.
type Backfiller interface {
	EvaluateAllUsers(ctx context.Context) (int, error)
}

// Ranking supplies the digest entries.
type Ranking interface {
	Top(ctx context.Context, t leaderboard.Type, p leaderboard.Period, limit int) ([]leaderboard.Entry, error)
}

// DigestSender posts the digest.
type DigestSender interface {
	Enabled() bool
	SendLeaderboardDigest(title, unit string, entries []mattermost.DigestEntry) error
}

// Service handles cron scheduling.
type Service struct {
	config     *config.SchedulerConfig
	backfiller Backfiller
	ranking    Ranking
	sender     DigestSender
	log        *logger.Logger
	cron       *cron.Cron
}

// NewService creates a new scheduler service. Any dependency may be nil, which
// disables the jobs that need it.
func NewService(
	cfg *config.SchedulerConfig,
	backfiller Backfiller,
	ranking Ranking,
	sender DigestSender,
	log *logger.Logger,
) *Service {
	return &Service{
		config:     cfg,
		backfiller: backfiller,
		ranking:    ranking,
		sender:     sender,
		log:        log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if s.config.AchievementBackfill != "" && s.backfiller != nil {
		_, err = s.cron.AddFunc(s.config.AchievementBackfill, func() {
			s.runAchievementBackfill(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register achievement backfill job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.AchievementBackfill).
			Msg("Achievement backfill job registered")
	}

	if s.config.LeaderboardDigestTime != "" && s.ranking != nil && s.sender != nil && s.sender.Enabled() {
		cronExpr, err := s.buildCronExpression()
		if err != nil {
			return fmt.Errorf("failed to build cron expression: %w", err)
		}
		_, err = s.cron.AddFunc(cronExpr, func() {
			s.runLeaderboardDigest(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register leaderboard digest job: %w", err)
		}
		s.log.Info().
			Str("schedule", cronExpr).
			Str("time", s.config.LeaderboardDigestTime).
			Bool("skip_weekends", s.config.DigestSkipWeekends).
			Msg("Leaderboard digest job registered")
	}

	s.cron.Start()

	nextRun := ""
	if entries := s.cron.Entries(); len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("timezone", s.config.Timezone).
		Int("jobs", len(s.cron.Entries())).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression turns the "HH:MM" digest time into a cron expression.
func (s *Service) buildCronExpression() (string, error) {
	parts := strings.Split(s.config.LeaderboardDigestTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.LeaderboardDigestTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	if s.config.DigestSkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// track records the run metrics of a job.
func track(job string, start time.Time, err error) {
	prommetrics.ObserveSchedulerJobDuration(job, time.Since(start).Seconds())
	prommetrics.SetSchedulerLastRun(job)
	status := "success"
	if err != nil {
		status = "error"
	}
	prommetrics.RecordSchedulerJobRun(job, status)
}

// runAchievementBackfill unlocks achievements missed by the submission path.
func (s *Service) runAchievementBackfill(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Running achievement backfill job")

	unlocked, err := s.backfiller.EvaluateAllUsers(ctx)
	track(JobAchievementBackfill, start, err)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Achievement backfill job failed")
		return
	}

	s.log.Info().
		Int("achievements_unlocked", unlocked).
		Dur("duration", time.Since(start)).
		Msg("Achievement backfill job completed successfully")
}

// runLeaderboardDigest posts the weekly CO2 leaders.
func (s *Service) runLeaderboardDigest(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Running leaderboard digest job")

	sent, err := s.sendDigest(ctx)
	track(JobLeaderboardDigest, start, err)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Leaderboard digest job failed")
		return
	}

	s.log.Info().
		Int("entries", sent).
		Dur("duration", time.Since(start)).
		Msg("Leaderboard digest job completed successfully")
}

func (s *Service) sendDigest(ctx context.Context) (int, error) {
	top, err := s.ranking.Top(ctx, leaderboard.TypeCO2, leaderboard.PeriodWeek, s.config.LeaderboardDigestLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to load weekly leaderboard: %w", err)
	}

	entries := buildDigestEntries(top)
	if len(entries) == 0 {
		s.log.Debug().Msg("No CO2 savings this week, skipping digest")
		return 0, nil
	}

	if err := s.sender.SendLeaderboardDigest("Weekly CO₂ savers", leaderboard.TypeCO2.Unit(), entries); err != nil {
		return 0, fmt.Errorf("failed to send leaderboard digest: %w", err)
	}
	return len(entries), nil
}
