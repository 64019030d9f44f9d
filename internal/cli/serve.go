package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/treeroute/treeroute/internal/api"
	"github.com/treeroute/treeroute/internal/api/dashboard"
	"github.com/treeroute/treeroute/internal/api/middleware"
	"github.com/treeroute/treeroute/internal/mattermost"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/internal/service/achievements"
	"github.com/treeroute/treeroute/internal/service/journeys"
	"github.com/treeroute/treeroute/internal/service/leaderboard"
	"github.com/treeroute/treeroute/internal/service/scheduler"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort        int
	serveSkipMigrate bool
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "Do not bring the schema up to date on start")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg, log := a.cfg, a.log
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	if !serveSkipMigrate {
		if err := repository.Migrate(a.db, cfg.Database.Driver, log); err != nil {
			return err
		}
	}

	notifier := mattermost.NewClient(&cfg.Mattermost, log.Named("mattermost"))
	boards := leaderboard.NewService(a.db, a.leaderboardCache(), cfg.Leaderboard.Limit, cfg.Leaderboard.TTL(), log.Named("leaderboard"))
	journeyService := journeys.NewService(a.db, a.locker(), boards, notifier, log.Named("journeys"))
	statsService := leaderboard.NewStatsService(a.db, boards, log.Named("stats"))
	achievementService := achievements.NewService(a.db, notifier, log.Named("achievements"))

	sched := scheduler.NewService(&cfg.Scheduler, achievementService, boards, notifier, log.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	health := map[string]api.HealthCheck{
		"database": func(context.Context) error { return a.db.Health() },
	}
	if a.redis != nil {
		health["redis"] = a.redis.Health
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.SubmissionsPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.SubmissionsPerMinute)
	}

	metricsPath := ""
	if cfg.Metrics.Prometheus.Enabled {
		metricsPath = cfg.Metrics.Prometheus.Path
	}

	router := api.NewRouter(api.RouterConfig{
		Handler:        dashboard.NewHandler(journeyService, statsService, boards, log.Named("api")),
		Auth:           middleware.NewAuthenticator(cfg.Auth.JWTSecret),
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsPath:    metricsPath,
		Health:         health,
		Log:            log.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("environment", cfg.Server.Environment).
			Str("database", cfg.Database.Driver).
			Bool("redis", a.redis != nil).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
