package habits

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/benvon/habit-tracker/internal/analytics"
	"github.com/benvon/habit-tracker/internal/models"
	"go.uber.org/zap"
)

const (
	seedHistoryDays    = 7
	seedCompletionOdds = 0.8
)

// SampleHabits are the habits created by Seed.
var SampleHabits = []CreateHabitInput{
	{
		Name:        "Morning Meditation",
		Description: "10 minutes of mindfulness after waking up",
		Category:    models.CategoryWellness,
		Color:       models.ColorSecondary,
		Frequency:   models.EveryDay,
	},
	{
		Name:        "Drink Water",
		Description: "Eight glasses spread through the day",
		Category:    models.CategoryHealth,
		Color:       models.ColorWarning,
		Frequency:   models.EveryDay,
	},
	{
		Name:        "Read a Book",
		Description: "At least 30 minutes of reading",
		Category:    models.CategoryLearning,
		Color:       models.ColorPrimary,
		Frequency:   models.NewRecurrence(models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday),
	},
	{
		Name:        "Exercise",
		Description: "A run, a ride or a gym session",
		Category:    models.CategoryHealth,
		Color:       models.ColorSuccess,
		Frequency:   models.NewRecurrence(models.Monday, models.Wednesday, models.Friday),
	},
}

// SeedResult reports what Seed wrote
type SeedResult struct {
	Skipped bool
	Habits  int
	Logs    int
}

// Seed gives a user without habits the sample habits and a week of history.
// Each due day of the previous week gets a log that is completed with
// probability 0.8 drawn from rng.
func (s *Service) Seed(ctx context.Context, userID int64, rng *rand.Rand) (SeedResult, error) {
	var result SeedResult

	n, err := s.habits.CountByUser(ctx, userID)
	if err != nil {
		return result, err
	}
	if n > 0 {
		s.logger.Info("seed_skipped_user_has_habits",
			zap.Int64("user_id", userID),
			zap.Int("habit_count", n),
		)
		result.Skipped = true
		return result, nil
	}

	today := s.clock.Today()
	for _, in := range SampleHabits {
		habit := &models.Habit{
			UserID:      userID,
			Name:        in.Name,
			Description: in.Description,
			Category:    in.Category,
			Color:       in.Color,
			Active:      true,
			CreatedAt:   today.AddDays(-seedHistoryDays),
			Frequency:   in.Frequency,
		}
		if err := s.habits.Create(ctx, habit); err != nil {
			return result, fmt.Errorf("failed to create sample habit %q: %w", in.Name, err)
		}
		result.Habits++

		for i := 1; i <= seedHistoryDays; i++ {
			day := today.AddDays(-i)
			if !analytics.IsDue(habit.Frequency, day) {
				continue
			}
			completed := rng.Float64() < seedCompletionOdds
			if _, err := s.logs.Upsert(ctx, habit.ID, day, completed); err != nil {
				return result, fmt.Errorf("failed to create sample log: %w", err)
			}
			result.Logs++
		}
	}

	s.changed(ctx, userID)
	s.logger.Info("seeded_sample_habits",
		zap.Int64("user_id", userID),
		zap.Int("habits", result.Habits),
		zap.Int("logs", result.Logs),
	)
	return result, nil
}
