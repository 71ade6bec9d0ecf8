package habits

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/benvon/habit-tracker/internal/analytics"
	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = models.MustParseDate("2025-03-12") // Wednesday

type fixture struct {
	svc   *Service
	db    *database.DB
	alice int64
	bob   int64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db, err := database.New("sqlite://" + filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	migrator, err := database.NewMigrator(db)
	require.NoError(t, err)
	_, err = migrator.Up(context.Background())
	require.NoError(t, err)

	users := database.NewUserRepository(db)
	alice := &models.User{Username: "alice", PasswordHash: "x"}
	bob := &models.User{Username: "bob", PasswordHash: "x"}
	require.NoError(t, users.Create(context.Background(), alice))
	require.NoError(t, users.Create(context.Background(), bob))

	svc := NewService(
		database.NewHabitRepository(db),
		database.NewLogRepository(db),
		analytics.FixedClock(today),
		nil,
		opts...,
	)
	return &fixture{svc: svc, db: db, alice: alice.ID, bob: bob.ID}
}

func (f *fixture) create(t *testing.T, userID int64, name string, r models.Recurrence) *models.HabitView {
	t.Helper()
	v, err := f.svc.CreateHabit(context.Background(), userID, CreateHabitInput{Name: name, Frequency: r})
	require.NoError(t, err)
	return v
}

// memoryCache mirrors the generation semantics of the Redis cache.
type memoryCache struct {
	mu    sync.Mutex
	gen   map[int64]int64
	snaps map[int64]struct {
		day   models.Date
		gen   int64
		stats models.Stats
	}
	hits int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		gen: map[int64]int64{},
		snaps: map[int64]struct {
			day   models.Date
			gen   int64
			stats models.Stats
		}{},
	}
}

func (m *memoryCache) Load(_ context.Context, userID int64, day models.Date) (models.Stats, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gen[userID]
	snap, ok := m.snaps[userID]
	if !ok || snap.gen != g || !snap.day.Equal(day) {
		return models.Stats{}, g, false, nil
	}
	m.hits++
	return snap.stats, g, true, nil
}

func (m *memoryCache) Store(_ context.Context, userID int64, day models.Date, gen int64, stats models.Stats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen[userID] != gen {
		return nil
	}
	m.snaps[userID] = struct {
		day   models.Date
		gen   int64
		stats models.Stats
	}{day, gen, stats}
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen[userID]++
	return nil
}

var _ StatsCache = (*memoryCache)(nil)

func TestCreateHabit_Defaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v := f.create(t, f.alice, "Meditate", models.EveryDay)
	assert.NotZero(t, v.ID)
	assert.Equal(t, models.CategoryOther, v.Category)
	assert.Equal(t, models.ColorPrimary, v.Color)
	assert.True(t, v.Active)
	assert.Equal(t, today, v.CreatedAt)
	assert.Equal(t, "Every day", v.FrequencyLabel)
	assert.Empty(t, v.Completions)
}

func TestToggle_IdempotentAndFlips(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, f.alice, "Read", models.EveryDay)
	day := today.AddDays(-1)

	_, err := f.svc.Toggle(ctx, f.alice, h.ID, day, true)
	require.NoError(t, err)
	_, err = f.svc.Toggle(ctx, f.alice, h.ID, day, true)
	require.NoError(t, err)

	v, err := f.svc.GetHabit(ctx, f.alice, h.ID)
	require.NoError(t, err)
	require.Len(t, v.Completions, 1)
	assert.Equal(t, 100, v.CompletionRate)
	assert.Equal(t, 1, v.Streak)

	log, err := f.svc.Toggle(ctx, f.alice, h.ID, day, false)
	require.NoError(t, err)
	assert.False(t, log.Completed)

	v, err = f.svc.GetHabit(ctx, f.alice, h.ID)
	require.NoError(t, err)
	require.Len(t, v.Completions, 1)
	assert.False(t, v.Completions[0].Completed)
	assert.Equal(t, 0, v.Streak)
	assert.Equal(t, 0, v.CompletionRate)
}

func TestToggle_NonDueDayAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	h := f.create(t, f.alice, "Sundays", models.NewRecurrence(models.Sunday))

	log, err := f.svc.Toggle(context.Background(), f.alice, h.ID, today, true)
	require.NoError(t, err)
	assert.True(t, log.Completed)
}

func TestNotFoundPropagates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, f.alice, "Private", models.EveryDay)
	missing := int64(99999)

	_, err := f.svc.Toggle(ctx, f.alice, missing, today, true)
	assert.ErrorIs(t, err, ErrHabitNotFound)

	// Another user's habit is indistinguishable from a missing one.
	_, err = f.svc.Toggle(ctx, f.bob, h.ID, today, true)
	assert.ErrorIs(t, err, ErrHabitNotFound)
	_, err = f.svc.GetHabit(ctx, f.bob, h.ID)
	assert.ErrorIs(t, err, ErrHabitNotFound)
	_, err = f.svc.HabitLogs(ctx, f.bob, h.ID)
	assert.ErrorIs(t, err, ErrHabitNotFound)
	name := "stolen"
	_, err = f.svc.UpdateHabit(ctx, f.bob, h.ID, UpdateHabitInput{Name: &name})
	assert.ErrorIs(t, err, ErrHabitNotFound)
	assert.ErrorIs(t, f.svc.DeleteHabit(ctx, f.bob, h.ID), ErrHabitNotFound)
	_, err = f.svc.LogsBetween(ctx, f.alice, today, today, &missing)
	assert.ErrorIs(t, err, ErrHabitNotFound)
}

func TestUpdateHabit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, f.alice, "Gym", models.EveryDay)

	name := "Gym session"
	color := models.ColorDanger
	freq := models.NewRecurrence(models.Monday, models.Wednesday, models.Friday)
	v, err := f.svc.UpdateHabit(ctx, f.alice, h.ID, UpdateHabitInput{Name: &name, Color: &color, Frequency: &freq})
	require.NoError(t, err)
	assert.Equal(t, "Gym session", v.Name)
	assert.Equal(t, models.ColorDanger, v.Color)
	assert.Equal(t, models.CategoryOther, v.Category)
	assert.Equal(t, "Mon, Wed, Fri", v.FrequencyLabel)
}

func TestDeleteHabit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, f.alice, "Temp", models.EveryDay)
	_, err := f.svc.Toggle(ctx, f.alice, h.ID, today, true)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteHabit(ctx, f.alice, h.ID))
	_, err = f.svc.GetHabit(ctx, f.alice, h.ID)
	assert.ErrorIs(t, err, ErrHabitNotFound)

	logs, err := f.svc.LogsOnDate(ctx, f.alice, today, nil)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestListHabits_Analytics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	mwf := f.create(t, f.alice, "MWF", models.NewRecurrence(models.Monday, models.Wednesday, models.Friday))
	f.create(t, f.bob, "Bob's", models.EveryDay)

	for _, d := range []string{"2025-03-10", "2025-03-07", "2025-03-05"} {
		_, err := f.svc.Toggle(ctx, f.alice, mwf.ID, models.MustParseDate(d), true)
		require.NoError(t, err)
	}
	_, err := f.svc.Toggle(ctx, f.alice, mwf.ID, models.MustParseDate("2025-03-03"), false)
	require.NoError(t, err)

	views, err := f.svc.ListHabits(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 3, views[0].Streak)
	assert.Equal(t, 75, views[0].CompletionRate)
	assert.Len(t, views[0].Completions, 4)
}

func TestLogsBetween(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, f.alice, "Walk", models.EveryDay)
	for i := range 5 {
		_, err := f.svc.Toggle(ctx, f.alice, h.ID, today.AddDays(-i), i%2 == 0)
		require.NoError(t, err)
	}

	logs, err := f.svc.LogsBetween(ctx, f.alice, today.AddDays(-3), today.AddDays(-1), nil)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	logs, err = f.svc.LogsOnDate(ctx, f.alice, today, &h.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Completed)

	_, err = f.svc.LogsBetween(ctx, f.alice, today, today.AddDays(-1), nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.svc.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{}, stats)

	h := f.create(t, f.alice, "Daily", models.EveryDay)
	for i := 1; i <= 3; i++ {
		_, err := f.svc.Toggle(ctx, f.alice, h.ID, today.AddDays(-i), i != 3)
		require.NoError(t, err)
	}

	stats, err = f.svc.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{
		CurrentStreak:  2,
		CompletionRate: 67,
		ActiveHabits:   1,
		LongestStreak:  2,
		TotalCompleted: 2,
		TotalSkipped:   1,
	}, stats)
}

func TestStats_CacheInvalidatedByMutation(t *testing.T) {
	t.Parallel()
	cache := newMemoryCache()
	var hooked []int64
	var mu sync.Mutex
	f := newFixture(t, WithStatsCache(cache), WithChangeHook(func(_ context.Context, userID int64) {
		mu.Lock()
		defer mu.Unlock()
		hooked = append(hooked, userID)
	}))
	ctx := context.Background()
	h := f.create(t, f.alice, "Daily", models.EveryDay)

	first, err := f.svc.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ActiveHabits)

	second, err := f.svc.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)

	_, err = f.svc.Toggle(ctx, f.alice, h.ID, today.AddDays(-1), true)
	require.NoError(t, err)

	third, err := f.svc.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 1, third.CurrentStreak)
	assert.Equal(t, 1, third.TotalCompleted)
	assert.Equal(t, 1, cache.hits)

	mu.Lock()
	assert.Equal(t, []int64{f.alice, f.alice}, hooked)
	mu.Unlock()
}

func TestRefreshStats(t *testing.T) {
	t.Parallel()
	cache := newMemoryCache()
	f := newFixture(t, WithStatsCache(cache))
	ctx := context.Background()
	f.create(t, f.alice, "Daily", models.EveryDay)

	stats, err := f.svc.RefreshStats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveHabits)

	_, err = f.svc.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}
