package achievements

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/pkg/logger"
	"github.com/treeroute/treeroute/test/testdb"
)

var now = time.Date(2026, time.October, 14, 18, 30, 0, 0, time.UTC)

// fakeJourneys returns fixed aggregates.
type fakeJourneys struct {
	totals models.JourneyTotals
	today  models.JourneyTotals
	byMode map[models.Mode]models.JourneyTotals
	err    error
}

func (f *fakeJourneys) Totals(context.Context, uint) (models.JourneyTotals, error) {
	return f.totals, f.err
}

func (f *fakeJourneys) TotalsBetween(context.Context, uint, time.Time, time.Time) (models.JourneyTotals, error) {
	return f.today, f.err
}

func (f *fakeJourneys) ModeTotals(context.Context, uint) (map[models.Mode]models.JourneyTotals, error) {
	return f.byMode, f.err
}

// fakeUnlocks keeps unlocks in memory. rejectKeys simulates rows inserted by
// a concurrent transaction.
type fakeUnlocks struct {
	mu         sync.Mutex
	rows       []models.UserAchievement
	rejectKeys map[string]bool
	unlockErr  error
}

func (f *fakeUnlocks) ListByUser(_ context.Context, userID uint) ([]models.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserAchievement
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeUnlocks) Unlock(_ context.Context, userID uint, key string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unlockErr != nil {
		return false, f.unlockErr
	}
	if f.rejectKeys[key] {
		return false, nil
	}
	for _, r := range f.rows {
		if r.UserID == userID && r.AchievementKey == key {
			return false, nil
		}
	}
	f.rows = append(f.rows, models.UserAchievement{UserID: userID, AchievementKey: key, UnlockedAt: at})
	return true, nil
}

func keys(defs []Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Key)
	}
	return out
}

func TestRegistry(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 12)

	seen := map[string]bool{}
	for _, d := range defs {
		assert.False(t, seen[d.Key], "duplicate key %s", d.Key)
		seen[d.Key] = true
		assert.NotEmpty(t, d.Name)
		assert.NotEmpty(t, d.Icon)
		assert.NotEmpty(t, d.Description)
	}

	d, ok := Lookup(KeyFiveADay)
	require.True(t, ok)
	assert.Equal(t, "Five-a-Day", d.Name)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		key   string
		stats Stats
		met   bool
	}{
		{KeyFirstSteps, Stats{TotalJourneys: 1}, true},
		{KeyFirstSteps, Stats{}, false},
		{KeyHotStreak, Stats{CurrentStreak: 3}, true},
		{KeyHotStreak, Stats{CurrentStreak: 2, LongestStreak: 10}, false},
		{KeyWeekWarrior, Stats{CurrentStreak: 7}, true},
		{KeyMonthMaster, Stats{CurrentStreak: 29}, false},
		{KeyMonthMaster, Stats{CurrentStreak: 30}, true},
		{KeyPedalPower, Stats{BikeJourneys: 10}, true},
		{KeyWalkingLegend, Stats{WalkDistanceKm: 49.99}, false},
		{KeyWalkingLegend, Stats{WalkDistanceKm: 50}, true},
		{KeyCarbonCrusher, Stats{TotalCO2Saved: 20}, true},
		{KeyCenturyClub, Stats{TotalCO2Saved: 99.9}, false},
		{KeyCalorieBurner, Stats{TotalCalories: 1000}, true},
		{KeyDistanceKing, Stats{TotalDistance: 200}, true},
		{KeyFiveADay, Stats{TodayJourneys: 4, TotalJourneys: 50}, false},
		{KeyFiveADay, Stats{TodayJourneys: 5}, true},
		{KeySpeedDemon, Stats{TotalJourneys: 10}, true},
	}

	for _, tt := range tests {
		d, ok := Lookup(tt.key)
		require.True(t, ok, tt.key)
		assert.Equal(t, tt.met, d.Met(tt.stats), "%s %+v", tt.key, tt.stats)
	}
}

func TestEvaluate_FirstJourney(t *testing.T) {
	journeys := &fakeJourneys{
		totals: models.JourneyTotals{Journeys: 1, DistanceKm: 10, CO2Saved: 1.71, Calories: 280},
		today:  models.JourneyTotals{Journeys: 1},
		byMode: map[models.Mode]models.JourneyTotals{models.ModeBike: {Journeys: 1, DistanceKm: 10}},
	}
	unlocks := &fakeUnlocks{}
	user := &models.User{ID: 1, CurrentStreak: 1, LongestStreak: 1}

	got, err := Evaluate(context.Background(), journeys, unlocks, user, now)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyFirstSteps}, keys(got))

	// The same conditions never report the unlock again.
	journeys.totals.Journeys = 2
	journeys.today.Journeys = 2
	got, err = Evaluate(context.Background(), journeys, unlocks, user, now)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, unlocks.rows, 1)
}

func TestEvaluate_MultipleInRegistryOrder(t *testing.T) {
	journeys := &fakeJourneys{
		totals: models.JourneyTotals{Journeys: 12, DistanceKm: 210, CO2Saved: 25, Calories: 1500},
		today:  models.JourneyTotals{Journeys: 5},
		byMode: map[models.Mode]models.JourneyTotals{
			models.ModeBike: {Journeys: 10, DistanceKm: 150},
			models.ModeWalk: {Journeys: 2, DistanceKm: 60},
		},
	}
	user := &models.User{ID: 7, CurrentStreak: 3, LongestStreak: 3}

	got, err := Evaluate(context.Background(), journeys, &fakeUnlocks{}, user, now)
	require.NoError(t, err)
	assert.Equal(t, []string{
		KeyFirstSteps, KeyHotStreak, KeyPedalPower, KeyWalkingLegend, KeyCarbonCrusher,
		KeyCalorieBurner, KeyDistanceKing, KeyFiveADay, KeySpeedDemon,
	}, keys(got))
}

func TestEvaluate_LostInsertRaceIsNotReported(t *testing.T) {
	journeys := &fakeJourneys{totals: models.JourneyTotals{Journeys: 10}}
	unlocks := &fakeUnlocks{rejectKeys: map[string]bool{KeyFirstSteps: true}}

	got, err := Evaluate(context.Background(), journeys, unlocks, &models.User{ID: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{KeySpeedDemon}, keys(got))
}

func TestEvaluate_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := Evaluate(context.Background(), &fakeJourneys{err: boom}, &fakeUnlocks{}, &models.User{ID: 1}, now)
	assert.ErrorIs(t, err, boom)

	journeys := &fakeJourneys{totals: models.JourneyTotals{Journeys: 1}}
	_, err = Evaluate(context.Background(), journeys, &fakeUnlocks{unlockErr: boom}, &models.User{ID: 1}, now)
	assert.ErrorIs(t, err, boom)
}

func TestCatalog(t *testing.T) {
	at := now.Add(-time.Hour)
	catalog := Catalog([]models.UserAchievement{
		{AchievementKey: KeyHotStreak, UnlockedAt: at},
		{AchievementKey: "retired_key", UnlockedAt: at},
	})

	require.Len(t, catalog, len(Definitions()))
	unlocked := 0
	for _, st := range catalog {
		if st.Unlocked {
			unlocked++
			assert.Equal(t, KeyHotStreak, st.Key)
			require.NotNil(t, st.UnlockedAt)
			assert.True(t, st.UnlockedAt.Equal(at))
		} else {
			assert.Nil(t, st.UnlockedAt)
		}
	}
	assert.Equal(t, 1, unlocked)
}

type recordingNotifier struct {
	names []string
}

func (n *recordingNotifier) AnnounceAchievement(_, name, _, _ string) error {
	n.names = append(n.names, name)
	return nil
}

func TestEvaluateAllUsers(t *testing.T) {
	db := testdb.New(t)
	log := logger.New("debug", "text", "stdout")

	walker := testdb.CreateUser(t, db, "walker")
	idle := testdb.CreateUser(t, db, "idle")
	for i := 0; i < 10; i++ {
		testdb.CreateJourney(t, db, walker.ID, models.ModeWalk, 6, 1.026, now.Add(-time.Duration(i)*24*time.Hour))
	}
	_, err := db.Repos().Achievements.Unlock(context.Background(), walker.ID, KeyFirstSteps, now.Add(-240*time.Hour))
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc := NewServiceWithInterfaces(db, db.Repos().Users, notifier, func() time.Time { return now }, log)

	count, err := svc.EvaluateAllUsers(context.Background())
	require.NoError(t, err)
	// 60 km walked and 10 journeys; first_steps was already there.
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"Walking Legend", "Speed Demon"}, notifier.names)

	idleUnlocks, err := db.Repos().Achievements.ListByUser(context.Background(), idle.ID)
	require.NoError(t, err)
	assert.Empty(t, idleUnlocks)

	// A second run finds nothing new.
	count, err = svc.EvaluateAllUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEvaluateAllUsers_Cancelled(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, "someone")
	svc := NewService(db, nil, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EvaluateAllUsers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
