// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the journey progression engine.
var (
	// Counters.
	JourneysLoggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_journeys_logged_total",
			Help: "Total number of journeys logged",
		},
		[]string{"mode"},
	)

	JourneysRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_journeys_rejected_total",
			Help: "Total number of journey submissions rejected",
		},
		[]string{"reason"},
	)

	XPAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_xp_awarded_total",
			Help: "Total XP awarded for journeys",
		},
		[]string{"mode"},
	)

	CO2SavedKgTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treeroute_co2_saved_kg_total",
			Help: "Net kilograms of CO2 saved compared with driving",
		},
	)

	LevelUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_level_ups_total",
			Help: "Total number of level ups by the level reached",
		},
		[]string{"level"},
	)

	AchievementsUnlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_achievements_unlocked_total",
			Help: "Total number of achievements unlocked",
		},
		[]string{"achievement"},
	)

	PersistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_persistence_failures_total",
			Help: "Total number of journey transactions that failed to commit",
		},
		[]string{"op"},
	)

	LeaderboardCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"result"},
	)

	// Histograms.
	JourneyDistanceKm = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treeroute_journey_distance_km",
			Help:    "Distance of logged journeys in kilometres",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5km to ~256km
		},
		[]string{"mode"},
	)

	SubmissionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treeroute_submission_duration_seconds",
			Help:    "Time taken to process a journey submission",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "treeroute_scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treeroute_scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
		},
		[]string{"job"},
	)

	NotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treeroute_notifications_failed_total",
			Help: "Total failed webhook notification attempts",
		},
		[]string{"kind"},
	)
)

// RecordJourney records a committed journey.
func RecordJourney(mode string, distanceKm, co2Saved float64, xp int) {
	JourneysLoggedTotal.WithLabelValues(mode).Inc()
	XPAwardedTotal.WithLabelValues(mode).Add(float64(xp))
	JourneyDistanceKm.WithLabelValues(mode).Observe(distanceKm)
	// Counters only go up; deficits are visible per journey in the database.
	if co2Saved > 0 {
		CO2SavedKgTotal.Add(co2Saved)
	}
}

// RecordJourneyRejected records a submission rejected before any write.
func RecordJourneyRejected(reason string) {
	JourneysRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordLevelUp records a user reaching a new level.
func RecordLevelUp(level string) {
	LevelUpsTotal.WithLabelValues(level).Inc()
}

// RecordAchievementUnlocked records an achievement unlock.
func RecordAchievementUnlocked(key string) {
	AchievementsUnlockedTotal.WithLabelValues(key).Inc()
}

// RecordPersistenceFailure records a rolled back journey transaction.
func RecordPersistenceFailure(op string) {
	PersistenceFailuresTotal.WithLabelValues(op).Inc()
}

// RecordLeaderboardCache records a leaderboard cache hit or miss.
func RecordLeaderboardCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	LeaderboardCacheTotal.WithLabelValues(result).Inc()
}

// ObserveSubmissionDuration observes how long a submission took.
func ObserveSubmissionDuration(seconds float64) {
	SubmissionDurationSeconds.Observe(seconds)
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordNotificationFailed records a failed webhook notification.
func RecordNotificationFailed(kind string) {
	NotificationsFailedTotal.WithLabelValues(kind).Inc()
}
