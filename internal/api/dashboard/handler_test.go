//nolint:noctx // Test file uses http.NewRequest for simplicity
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeroute/treeroute/internal/api/middleware"
	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/service/achievements"
	"github.com/treeroute/treeroute/internal/service/emissions"
	"github.com/treeroute/treeroute/internal/service/journeys"
	"github.com/treeroute/treeroute/internal/service/leaderboard"
	"github.com/treeroute/treeroute/pkg/logger"
	"github.com/treeroute/treeroute/test/testdb"
)

const callerID uint = 7

// Mock Journey Service
type mockJourneyService struct {
	submitErr  error
	historyErr error
	got        journeys.Submission
	gotPage    int
	gotLimit   int
}

func (m *mockJourneyService) Submit(_ context.Context, userID uint, sub journeys.Submission) (*journeys.Result, error) {
	m.got = sub
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &journeys.Result{
		Journey:      &models.Journey{ID: 1, UserID: userID, Mode: models.ModeBike, DistanceKm: sub.DistanceKm},
		Gamification: journeys.Gamification{NewAchievements: []achievements.Definition{}},
	}, nil
}

func (m *mockJourneyService) History(_ context.Context, _ uint, page, limit int) (*journeys.Page, error) {
	m.gotPage, m.gotLimit = page, limit
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return &journeys.Page{Journeys: []models.Journey{}, Page: page}, nil
}

// Mock Stats Service
type mockStatsService struct {
	stats map[uint]*leaderboard.UserStats
	err   error
}

func (m *mockStatsService) GetUserStats(_ context.Context, userID uint) (*leaderboard.UserStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.stats[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", leaderboard.ErrUserNotFound, userID)
	}
	return s, nil
}

// Mock Leaderboard Service
type mockLeaderboardService struct {
	err       error
	gotType   leaderboard.Type
	gotPeriod leaderboard.Period
	gotCaller uint
}

func (m *mockLeaderboardService) Get(_ context.Context, t leaderboard.Type, p leaderboard.Period, callerID uint) (*leaderboard.Board, error) {
	m.gotType, m.gotPeriod, m.gotCaller = t, p, callerID
	if m.err != nil {
		return nil, m.err
	}
	return &leaderboard.Board{Type: t, Period: p, Unit: t.Unit(), Entries: []leaderboard.Entry{
		{Rank: 1, UserID: 3, Username: "ada", Value: 12.3},
	}}, nil
}

// Test Setup
type mocks struct {
	journeys    *mockJourneyService
	stats       *mockStatsService
	leaderboard *mockLeaderboardService
}

func setupTestHandler() (*Handler, *mocks) {
	m := &mocks{
		journeys:    &mockJourneyService{},
		stats:       &mockStatsService{stats: map[uint]*leaderboard.UserStats{}},
		leaderboard: &mockLeaderboardService{},
	}
	return NewHandlerWithInterfaces(m.journeys, m.stats, m.leaderboard, logger.Nop()), m
}

// asCaller stands in for the JWT middleware.
func asCaller(id uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != 0 {
			c.Set(middleware.ContextUserIDKey, id)
		}
		c.Next()
	}
}

func setupRouter(handler *Handler, caller uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/v1", asCaller(caller))
	api.POST("/journeys", handler.SubmitJourney)
	api.GET("/journeys", handler.ListJourneys)
	api.GET("/stats", handler.GetStats)
	api.GET("/leaderboard", handler.GetLeaderboard)
	api.GET("/achievements", handler.GetAchievements)

	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, http.NoBody)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// Tests

func TestSubmitJourney_Success(t *testing.T) {
	handler, m := setupTestHandler()
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodPost, "/api/v1/journeys",
		`{"mode":"bike","distance_km":10,"route_distance_km":9.5,"origin":"Home","destination":"Office","route_duration_min":33}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "bike", m.journeys.got.Mode)
	assert.Equal(t, 10.0, m.journeys.got.DistanceKm)
	require.NotNil(t, m.journeys.got.RouteDistanceKm)
	assert.Equal(t, 9.5, *m.journeys.got.RouteDistanceKm)
	require.NotNil(t, m.journeys.got.RouteDurationMin)
	assert.Equal(t, 33.0, *m.journeys.got.RouteDurationMin)

	response := decode(t, w)
	assert.Contains(t, response, "journey")
	assert.Contains(t, response, "comparison")
	assert.Contains(t, response, "gamification")
}

func TestSubmitJourney_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"malformed body", `{"mode":`, nil, http.StatusBadRequest, "invalid request body"},
		{"distance as string", `{"mode":"bike","distance_km":"10"}`, nil, http.StatusBadRequest, "invalid distance: distance_km must be a number"},
		{"route distance as string", `{"mode":"bike","distance_km":10,"route_distance_km":"12"}`, nil, http.StatusBadRequest, "invalid distance: route_distance_km must be a number"},
		{"route duration as bool", `{"mode":"bike","distance_km":10,"route_duration_min":true}`, nil, http.StatusBadRequest, "route_duration_min must be a number"},
		{"origin as number", `{"mode":"bike","distance_km":10,"origin":5}`, nil, http.StatusBadRequest, "invalid request body"},
		{"invalid mode", `{}`, fmt.Errorf("%w: %q", emissions.ErrInvalidMode, "rocket"), http.StatusBadRequest, "invalid transport mode"},
		{"invalid distance", `{}`, fmt.Errorf("%w: -1", emissions.ErrInvalidDistance), http.StatusBadRequest, "invalid distance"},
		{"missing location", `{}`, journeys.ErrInvalidLocation, http.StatusBadRequest, "origin and destination are required"},
		{"unknown user", `{}`, fmt.Errorf("%w: 7", journeys.ErrUserNotFound), http.StatusNotFound, "user not found"},
		{"persistence", `{}`, &journeys.PersistenceError{Op: journeys.OpCommit, Err: errors.New("disk full")}, http.StatusInternalServerError, "Failed to record journey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, m := setupTestHandler()
			m.journeys.submitErr = tt.err
			router := setupRouter(handler, callerID)

			w := do(router, http.MethodPost, "/api/v1/journeys", tt.body)

			assert.Equal(t, tt.status, w.Code)
			response := decode(t, w)
			assert.Contains(t, response["error"], tt.message)
			assert.Contains(t, response, "timestamp")
			assert.NotContains(t, w.Body.String(), "disk full")
		})
	}
}

func TestListJourneys(t *testing.T) {
	handler, m := setupTestHandler()
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodGet, "/api/v1/journeys", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, m.journeys.gotPage)
	assert.Equal(t, 20, m.journeys.gotLimit)

	w = do(router, http.MethodGet, "/api/v1/journeys?page=3&limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, m.journeys.gotPage)
	assert.Equal(t, 5, m.journeys.gotLimit)
	assert.Equal(t, float64(3), decode(t, w)["page"])
}

func TestListJourneys_InvalidParams(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler, callerID)

	for _, q := range []string{"page=0", "page=abc", "limit=-1"} {
		w := do(router, http.MethodGet, "/api/v1/journeys?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestListJourneys_Failure(t *testing.T) {
	handler, m := setupTestHandler()
	m.journeys.historyErr = &journeys.PersistenceError{Op: journeys.OpList, Err: errors.New("timeout")}
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodGet, "/api/v1/journeys", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetStats(t *testing.T) {
	handler, m := setupTestHandler()
	m.stats.stats[callerID] = &leaderboard.UserStats{SustainabilityScore: 68, CO2Rank: 2}
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodGet, "/api/v1/stats", "")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(68), response["sustainability_score"])
	assert.Equal(t, float64(2), response["co2_rank"])
}

func TestGetStats_NotFound(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats_Failure(t *testing.T) {
	handler, m := setupTestHandler()
	m.stats.err = errors.New("db down")
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Failed to retrieve user statistics")
}

func TestGetLeaderboard(t *testing.T) {
	handler, m := setupTestHandler()
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodGet, "/api/v1/leaderboard?type=distance&period=week", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, leaderboard.TypeDistance, m.leaderboard.gotType)
	assert.Equal(t, leaderboard.PeriodWeek, m.leaderboard.gotPeriod)
	assert.Equal(t, callerID, m.leaderboard.gotCaller)

	response := decode(t, w)
	assert.Equal(t, "distance", response["type"])
	assert.Equal(t, "km", response["unit"])
	entries := response["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0], "user_id")
}

func TestGetLeaderboard_Defaults(t *testing.T) {
	handler, m := setupTestHandler()
	router := setupRouter(handler, 0)

	w := do(router, http.MethodGet, "/api/v1/leaderboard", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, leaderboard.TypeCO2, m.leaderboard.gotType)
	assert.Equal(t, leaderboard.PeriodAll, m.leaderboard.gotPeriod)
	assert.Equal(t, uint(0), m.leaderboard.gotCaller)
}

func TestGetLeaderboard_InvalidParams(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler, callerID)

	w := do(router, http.MethodGet, "/api/v1/leaderboard?type=calories", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid leaderboard type")

	w = do(router, http.MethodGet, "/api/v1/leaderboard?period=month", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid leaderboard period")
}

func TestGetAchievements(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler, 0)

	w := do(router, http.MethodGet, "/api/v1/achievements", "")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(len(achievements.Definitions())), response["total"])
}

// TestSubmitJourney_Envelope runs the real services to pin the response shape.
func TestSubmitJourney_Envelope(t *testing.T) {
	db := testdb.New(t)
	user := testdb.CreateUser(t, db, "ada")
	clock := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)

	journeyService := journeys.NewServiceWithInterfaces(db, db.Repos().Journeys, nil, nil, nil,
		func() time.Time { return clock }, logger.Nop())
	handler := NewHandlerWithInterfaces(journeyService, &mockStatsService{}, &mockLeaderboardService{}, logger.Nop())
	router := setupRouter(handler, user.ID)

	w := do(router, http.MethodPost, "/api/v1/journeys",
		`{"mode":"bike","distance_km":10,"origin":"<i>Home</i>","destination":"Office"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	response := decode(t, w)

	journey := response["journey"].(map[string]interface{})
	for _, key := range []string{"id", "origin", "destination", "mode", "distance_km", "co2_emitted",
		"co2_saved", "calories_burned", "travel_time_min", "xp_earned", "created_at"} {
		assert.Contains(t, journey, key)
	}
	assert.Equal(t, "bike", journey["mode"])
	assert.Equal(t, "Home", journey["origin"])
	assert.Equal(t, 1.71, journey["co2_saved"])

	comparison := response["comparison"].(map[string]interface{})
	assert.Equal(t, 1.71, comparison["car_co2"])
	assert.Equal(t, 20.0, comparison["car_time"])
	assert.Equal(t, 0.081, comparison["trees_equivalent"])
	assert.Len(t, comparison["per_mode_breakdown"], len(models.Modes()))

	gamification := response["gamification"].(map[string]interface{})
	assert.Equal(t, float64(78), gamification["xp_earned"])
	assert.Equal(t, float64(78), gamification["total_xp"])
	assert.Equal(t, float64(1), gamification["level"])
	assert.Equal(t, "Seedling", gamification["level_name"])
	assert.Equal(t, false, gamification["leveled_up"])
	assert.Equal(t, float64(22), gamification["xp_to_next_level"])
	unlocked := gamification["new_achievements"].([]interface{})
	require.Len(t, unlocked, 1)
	assert.Equal(t, achievements.KeyFirstSteps, unlocked[0].(map[string]interface{})["key"])

	w = do(router, http.MethodGet, "/api/v1/journeys", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.Equal(t, float64(1), page["total"])
	assert.Equal(t, float64(1), page["pages"])
}
