// Package dashboard provides the REST API handlers for journeys, stats and
// leaderboards.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/treeroute/treeroute/internal/api/middleware"
	"github.com/treeroute/treeroute/internal/service/achievements"
	"github.com/treeroute/treeroute/internal/service/emissions"
	"github.com/treeroute/treeroute/internal/service/journeys"
	"github.com/treeroute/treeroute/internal/service/leaderboard"
	"github.com/treeroute/treeroute/pkg/logger"
)

// JourneyService interface for journey operations.
type JourneyService interface {
	Submit(ctx context.Context, userID uint, sub journeys.Submission) (*journeys.Result, error)
	History(ctx context.Context, userID uint, page, limit int) (*journeys.Page, error)
}

// StatsService interface for the per-user dashboard.
type StatsService interface {
	GetUserStats(ctx context.Context, userID uint) (*leaderboard.UserStats, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	Get(ctx context.Context, t leaderboard.Type, p leaderboard.Period, callerID uint) (*leaderboard.Board, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	journeyService     JourneyService
	statsService       StatsService
	leaderboardService LeaderboardService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(journeyService *journeys.Service, statsService *leaderboard.StatsService, leaderboardService *leaderboard.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(journeyService, statsService, leaderboardService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(journeyService JourneyService, statsService StatsService, leaderboardService LeaderboardService, log *logger.Logger) *Handler {
	return &Handler{
		journeyService:     journeyService,
		statsService:       statsService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// SubmitJourney records a journey for the caller.
// POST /api/v1/journeys.
func (h *Handler) SubmitJourney(c *gin.Context) {
	userID := middleware.UserID(c)

	var sub journeys.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.errorResponse(c, http.StatusBadRequest, bindMessage(err))
		return
	}

	result, err := h.journeyService.Submit(c.Request.Context(), userID, sub)
	if err != nil {
		switch {
		case errors.Is(err, emissions.ErrInvalidMode),
			errors.Is(err, emissions.ErrInvalidDistance),
			errors.Is(err, journeys.ErrInvalidLocation):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, journeys.ErrUserNotFound):
			h.errorResponse(c, http.StatusNotFound, "user not found")
		default:
			h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to record journey")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to record journey")
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// bindMessage names the offending field when a numeric field has the wrong
// JSON type. Distances must be JSON numbers.
func bindMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return "invalid request body"
	}
	switch typeErr.Field {
	case "distance_km", "route_distance_km":
		return fmt.Sprintf("%v: %s must be a number", emissions.ErrInvalidDistance, typeErr.Field)
	case "route_duration_min":
		return "route_duration_min must be a number"
	}
	return "invalid request body"
}

// ListJourneys returns the caller's journey history.
// GET /api/v1/journeys?page=1&limit=20.
func (h *Handler) ListJourneys(c *gin.Context) {
	userID := middleware.UserID(c)

	page, err := h.parsePositiveInt(c, "page", 1)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.parsePositiveInt(c, "limit", 20)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.journeyService.History(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list journeys")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve journeys")
		return
	}

	c.JSON(http.StatusOK, history)
}

// GetStats returns the caller's dashboard statistics.
// GET /api/v1/stats.
func (h *Handler) GetStats(c *gin.Context) {
	userID := middleware.UserID(c)

	stats, err := h.statsService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, leaderboard.ErrUserNotFound) {
			h.errorResponse(c, http.StatusNotFound, "user not found")
			return
		}
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetLeaderboard returns a ranked leaderboard. user_rank is set for
// authenticated callers.
// GET /api/v1/leaderboard?type=co2&period=week.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	t, err := leaderboard.ParseType(c.Query("type"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	p, err := leaderboard.ParsePeriod(c.Query("period"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	board, err := h.leaderboardService.Get(c.Request.Context(), t, p, middleware.UserID(c))
	if err != nil {
		h.log.Error().Err(err).Str("type", string(t)).Str("period", string(p)).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, board)
}

// GetAchievements returns the achievement catalog.
// GET /api/v1/achievements.
func (h *Handler) GetAchievements(c *gin.Context) {
	defs := achievements.Definitions()
	c.JSON(http.StatusOK, gin.H{
		"achievements": defs,
		"total":        len(defs),
	})
}

// parsePositiveInt reads an optional positive integer query parameter.
func (h *Handler) parsePositiveInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s parameter: %s", name, raw)
	}
	return v, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
