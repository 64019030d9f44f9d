// Package api assembles the HTTP server.
package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/treeroute/treeroute/internal/api/dashboard"
	"github.com/treeroute/treeroute/internal/api/middleware"
	"github.com/treeroute/treeroute/pkg/logger"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Handler        *dashboard.Handler
	Auth           *middleware.Authenticator
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	MetricsPath    string // empty disables the metrics endpoint
	Health         map[string]HealthCheck
	Log            *logger.Logger
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/healthz", healthz(cfg.Health))
	if cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/achievements", cfg.Handler.GetAchievements)
	v1.GET("/leaderboard", cfg.Auth.Optional(), cfg.Handler.GetLeaderboard)

	authed := v1.Group("", cfg.Auth.Required())
	submit := []gin.HandlerFunc{cfg.Handler.SubmitJourney}
	if cfg.Limiter != nil {
		submit = append([]gin.HandlerFunc{cfg.Limiter.Middleware()}, submit...)
	}
	authed.POST("/journeys", submit...)
	authed.GET("/journeys", cfg.Handler.ListJourneys)
	authed.GET("/stats", cfg.Handler.GetStats)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// healthz runs every check and answers 503 if any fails.
func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":    state,
			"checks":    results,
			"timestamp": time.Now().UTC(),
		})
	}
}
