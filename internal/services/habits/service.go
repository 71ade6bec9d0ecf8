// Package habits is the application layer over habit storage and the
// analytics engine. All operations take the acting user's ID explicitly.
package habits

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/habit-tracker/internal/analytics"
	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/benvon/habit-tracker/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrHabitNotFound is returned when a habit does not exist or belongs to another user.
	ErrHabitNotFound = errors.New("habit not found")
	// ErrInvalidRange is returned when a date range ends before it starts.
	ErrInvalidRange = errors.New("start date is after end date")
)

// HabitStore persists habits and their recurrence
type HabitStore interface {
	Create(ctx context.Context, habit *models.Habit) error
	GetByID(ctx context.Context, userID, id int64) (*models.Habit, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Habit, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, habit *models.Habit, replaceFrequency bool) error
	Delete(ctx context.Context, userID, id int64) error
}

// LogStore persists completion logs
type LogStore interface {
	Upsert(ctx context.Context, habitID int64, date models.Date, completed bool) (*models.CompletionLog, error)
	ListByHabit(ctx context.Context, habitID int64) ([]models.CompletionLog, error)
	ListByUser(ctx context.Context, userID int64) ([]models.CompletionLog, error)
	ListByUserBetween(ctx context.Context, userID int64, start, end models.Date, habitID *int64) ([]models.CompletionLog, error)
}

var (
	_ HabitStore = (*database.HabitRepository)(nil)
	_ LogStore   = (*database.LogRepository)(nil)
)

// StatsCache stores derived stats snapshots. A snapshot is only valid for the
// day and mutation generation it was computed at.
type StatsCache interface {
	// Load returns the current generation and, when ok, a snapshot valid for day.
	Load(ctx context.Context, userID int64, day models.Date) (stats models.Stats, generation int64, ok bool, err error)
	// Store saves a snapshot computed while the generation was gen.
	Store(ctx context.Context, userID int64, day models.Date, gen int64, stats models.Stats) error
	// Invalidate bumps the user's generation so existing snapshots stop matching.
	Invalidate(ctx context.Context, userID int64) error
}

// ChangeHook is called after a user's habits or logs change.
type ChangeHook func(ctx context.Context, userID int64)

// Service implements habit operations on behalf of a user
type Service struct {
	habits   HabitStore
	logs     LogStore
	clock    analytics.Clock
	cache    StatsCache
	onChange ChangeHook
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithStatsCache serves stats from cache when the snapshot is still valid.
func WithStatsCache(cache StatsCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithChangeHook registers a callback for habit and log mutations.
func WithChangeHook(hook ChangeHook) Option {
	return func(s *Service) { s.onChange = hook }
}

// NewService creates a habit service
func NewService(habits HabitStore, logs LogStore, clock analytics.Clock, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		habits: habits,
		logs:   logs,
		clock:  clock,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the service clock's current day
func (s *Service) Today() models.Date { return s.clock.Today() }

func notFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrHabitNotFound
	}
	return err
}

// changed invalidates cached stats and notifies the hook. Failures are logged
// because the mutation itself already succeeded.
func (s *Service) changed(ctx context.Context, userID int64) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("failed_to_invalidate_stats_cache",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}
	if s.onChange != nil {
		s.onChange(ctx, userID)
	}
}

// CreateHabitInput holds the fields of a new habit
type CreateHabitInput struct {
	Name        string
	Description string
	Category    models.Category
	Color       models.Color
	Frequency   models.Recurrence
}

// CreateHabit stores a new active habit created today.
func (s *Service) CreateHabit(ctx context.Context, userID int64, in CreateHabitInput) (*models.HabitView, error) {
	if in.Category == "" {
		in.Category = models.CategoryOther
	}
	if in.Color == "" {
		in.Color = models.ColorPrimary
	}
	habit := &models.Habit{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Color:       in.Color,
		Active:      true,
		CreatedAt:   s.clock.Today(),
		Frequency:   in.Frequency,
	}
	if err := s.habits.Create(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}
	s.changed(ctx, userID)

	view := analytics.View(*habit, nil, s.clock.Today())
	return &view, nil
}

// ListHabits returns every habit of the user with its analytics.
func (s *Service) ListHabits(ctx context.Context, userID int64) ([]models.HabitView, error) {
	habits, err := s.habits.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	logs, err := s.logs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit logs: %w", err)
	}

	byHabit := make(map[int64][]models.CompletionLog, len(habits))
	for _, l := range logs {
		byHabit[l.HabitID] = append(byHabit[l.HabitID], l)
	}

	today := s.clock.Today()
	views := make([]models.HabitView, 0, len(habits))
	for _, h := range habits {
		views = append(views, analytics.View(h, byHabit[h.ID], today))
	}
	return views, nil
}

// GetHabit returns one habit with its analytics and completion history.
func (s *Service) GetHabit(ctx context.Context, userID, habitID int64) (*models.HabitView, error) {
	habit, err := s.habits.GetByID(ctx, userID, habitID)
	if err != nil {
		return nil, notFound(err)
	}
	logs, err := s.logs.ListByHabit(ctx, habit.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit logs: %w", err)
	}
	view := analytics.View(*habit, logs, s.clock.Today())
	return &view, nil
}

// UpdateHabitInput holds optional field changes; nil fields are left alone.
type UpdateHabitInput struct {
	Name        *string
	Description *string
	Category    *models.Category
	Color       *models.Color
	Active      *bool
	Frequency   *models.Recurrence
}

// UpdateHabit applies the given changes to a habit owned by the user.
func (s *Service) UpdateHabit(ctx context.Context, userID, habitID int64, in UpdateHabitInput) (*models.HabitView, error) {
	habit, err := s.habits.GetByID(ctx, userID, habitID)
	if err != nil {
		return nil, notFound(err)
	}
	if in.Name != nil {
		habit.Name = *in.Name
	}
	if in.Description != nil {
		habit.Description = *in.Description
	}
	if in.Category != nil {
		habit.Category = *in.Category
	}
	if in.Color != nil {
		habit.Color = *in.Color
	}
	if in.Active != nil {
		habit.Active = *in.Active
	}
	if in.Frequency != nil {
		habit.Frequency = *in.Frequency
	}

	if err := s.habits.Update(ctx, habit, in.Frequency != nil); err != nil {
		return nil, notFound(err)
	}
	s.changed(ctx, userID)
	return s.GetHabit(ctx, userID, habitID)
}

// DeleteHabit removes a habit with all its logs.
func (s *Service) DeleteHabit(ctx context.Context, userID, habitID int64) error {
	if err := s.habits.Delete(ctx, userID, habitID); err != nil {
		return notFound(err)
	}
	s.changed(ctx, userID)
	return nil
}

// Toggle sets the completion state of a habit on a day, creating the log if
// needed. Repeating a call with the same arguments leaves the same state.
// The day is not checked against the habit's recurrence.
func (s *Service) Toggle(ctx context.Context, userID, habitID int64, date models.Date, completed bool) (*models.CompletionLog, error) {
	if _, err := s.habits.GetByID(ctx, userID, habitID); err != nil {
		return nil, notFound(err)
	}
	log, err := s.logs.Upsert(ctx, habitID, date, completed)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle habit: %w", err)
	}
	s.changed(ctx, userID)
	return log, nil
}

// HabitLogs returns a habit's logs, newest first.
func (s *Service) HabitLogs(ctx context.Context, userID, habitID int64) ([]models.CompletionLog, error) {
	if _, err := s.habits.GetByID(ctx, userID, habitID); err != nil {
		return nil, notFound(err)
	}
	logs, err := s.logs.ListByHabit(ctx, habitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit logs: %w", err)
	}
	return logs, nil
}

// LogsBetween returns the user's logs in [start, end], optionally for one habit.
func (s *Service) LogsBetween(ctx context.Context, userID int64, start, end models.Date, habitID *int64) ([]models.CompletionLog, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	if habitID != nil {
		if _, err := s.habits.GetByID(ctx, userID, *habitID); err != nil {
			return nil, notFound(err)
		}
	}
	logs, err := s.logs.ListByUserBetween(ctx, userID, start, end, habitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit logs: %w", err)
	}
	return logs, nil
}

// LogsOnDate returns the user's logs for a single day.
func (s *Service) LogsOnDate(ctx context.Context, userID int64, date models.Date, habitID *int64) ([]models.CompletionLog, error) {
	return s.LogsBetween(ctx, userID, date, date, habitID)
}

// ComputeStats derives the user's stats from the full log history.
func (s *Service) ComputeStats(ctx context.Context, userID int64) (models.Stats, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "habits.compute_stats")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	habits, err := s.habits.ListByUser(ctx, userID)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to list habits: %w", err)
	}
	logs, err := s.logs.ListByUser(ctx, userID)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to list habit logs: %w", err)
	}
	span.SetAttributes(attribute.Int("habits.count", len(habits)), attribute.Int("logs.count", len(logs)))
	return analytics.Summarize(habits, logs, s.clock.Today()), nil
}

// Stats returns the user's dashboard stats, from cache when a snapshot for
// today and the current generation exists.
func (s *Service) Stats(ctx context.Context, userID int64) (models.Stats, error) {
	if s.cache == nil {
		return s.ComputeStats(ctx, userID)
	}

	today := s.clock.Today()
	cached, gen, ok, err := s.cache.Load(ctx, userID, today)
	if err != nil {
		s.logger.Warn("failed_to_load_stats_cache",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return s.ComputeStats(ctx, userID)
	}
	if ok {
		return cached, nil
	}

	stats, err := s.ComputeStats(ctx, userID)
	if err != nil {
		return models.Stats{}, err
	}
	if err := s.cache.Store(ctx, userID, today, gen, stats); err != nil {
		s.logger.Warn("failed_to_store_stats_cache",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
	return stats, nil
}

// RefreshStats recomputes and caches the user's stats.
func (s *Service) RefreshStats(ctx context.Context, userID int64) (models.Stats, error) {
	if s.cache == nil {
		return s.ComputeStats(ctx, userID)
	}
	today := s.clock.Today()
	_, gen, _, err := s.cache.Load(ctx, userID, today)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to load stats generation: %w", err)
	}
	stats, err := s.ComputeStats(ctx, userID)
	if err != nil {
		return models.Stats{}, err
	}
	if err := s.cache.Store(ctx, userID, today, gen, stats); err != nil {
		return models.Stats{}, fmt.Errorf("failed to store stats snapshot: %w", err)
	}
	return stats, nil
}
