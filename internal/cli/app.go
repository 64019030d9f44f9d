package cli

import (
	"errors"
	"fmt"

	"github.com/treeroute/treeroute/internal/cache"
	"github.com/treeroute/treeroute/internal/config"
	"github.com/treeroute/treeroute/internal/lock"
	"github.com/treeroute/treeroute/internal/repository"
	"github.com/treeroute/treeroute/internal/service/leaderboard"
	"github.com/treeroute/treeroute/pkg/logger"
)

const lockPrefix = "treeroute:lock:"

// app holds the shared infrastructure of every command.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *repository.DB
	redis *cache.Cache // nil when Redis is not configured
}

// newApp loads the configuration and opens the database and, when
// configured, Redis.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Init(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	log := logger.Get()

	db, err := repository.NewDB(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db}

	if cfg.Database.Redis.Enabled() {
		a.redis, err = cache.New(&cfg.Database.Redis)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info().
			Str("host", cfg.Database.Redis.Host).
			Int("port", cfg.Database.Redis.Port).
			Msg("Connected to Redis")
	}

	return a, nil
}

// locker serializes submissions across instances when Redis is available.
func (a *app) locker() lock.Locker {
	if a.redis == nil {
		return lock.NewKeyedMutex()
	}
	return lock.NewRedisLocker(a.redis.Client(), lockPrefix, a.log.Named("lock"))
}

// leaderboardCache returns a nil interface, not a typed nil, without Redis.
func (a *app) leaderboardCache() leaderboard.Cache {
	if a.redis == nil {
		return nil
	}
	return a.redis
}

func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
