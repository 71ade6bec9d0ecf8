// Package analytics derives streaks and completion rates from a habit's
// recurrence and its completion logs. Everything here is pure: callers load
// the logs and supply "today" from a Clock.
package analytics

import (
	"strings"

	"github.com/benvon/habit-tracker/internal/models"
)

// MaxLookbackDays caps the backward walk of CurrentStreak.
const MaxLookbackDays = 3660

// IsDue reports whether a habit with the given recurrence is due on day.
// Days before the habit existed are not treated specially.
func IsDue(r models.Recurrence, day models.Date) bool {
	return r.Contains(day.Weekday())
}

// logIndex maps each day to its completed flag for one habit.
type logIndex struct {
	byDay    map[models.Date]bool
	earliest models.Date
	latest   models.Date
}

func indexLogs(habitID int64, logs []models.CompletionLog) logIndex {
	idx := logIndex{byDay: make(map[models.Date]bool)}
	for _, l := range logs {
		if l.HabitID != habitID || l.Date.IsZero() {
			continue
		}
		idx.byDay[l.Date] = l.Completed
		if idx.earliest.IsZero() || l.Date.Before(idx.earliest) {
			idx.earliest = l.Date
		}
		if idx.latest.IsZero() || l.Date.After(idx.latest) {
			idx.latest = l.Date
		}
	}
	return idx
}

// CurrentStreak counts consecutive completed due days walking backward from
// the day before today. Today is excluded since it may still be in progress.
// Non-due days are skipped; the first due day that is missing or not completed
// ends the walk.
func CurrentStreak(h models.Habit, logs []models.CompletionLog, today models.Date) int {
	if h.Frequency.IsEmpty() {
		return 0
	}
	idx := indexLogs(h.ID, logs)
	if len(idx.byDay) == 0 {
		return 0
	}

	// No due day earlier than the first log can be completed, so the walk
	// ends there at the latest.
	floor := idx.earliest
	if limit := today.AddDays(-MaxLookbackDays); floor.Before(limit) {
		floor = limit
	}

	streak := 0
	for day := today.AddDays(-1); !day.Before(floor); day = day.AddDays(-1) {
		if !IsDue(h.Frequency, day) {
			continue
		}
		if completed, ok := idx.byDay[day]; !ok || !completed {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak returns the longest run of completed due days across the
// full span of the habit's logs.
func LongestStreak(h models.Habit, logs []models.CompletionLog) int {
	if h.Frequency.IsEmpty() {
		return 0
	}
	idx := indexLogs(h.ID, logs)
	if len(idx.byDay) == 0 {
		return 0
	}

	longest, run := 0, 0
	for day := idx.earliest; !day.After(idx.latest); day = day.AddDays(1) {
		if !IsDue(h.Frequency, day) {
			continue
		}
		if idx.byDay[day] {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return longest
}

// CompletionRate is the percentage of the habit's logs that are completed,
// rounded half up. The denominator is logged days, not due days.
func CompletionRate(habitID int64, logs []models.CompletionLog) int {
	completed, total := 0, 0
	for _, l := range logs {
		if l.HabitID != habitID {
			continue
		}
		total++
		if l.Completed {
			completed++
		}
	}
	return Percent(completed, total)
}

// Percent returns round(100*part/whole) with halves rounded up, and 0 when
// whole is zero.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}

// FrequencyLabel renders a recurrence for display, e.g. "Weekdays" or "Mon, Wed".
func FrequencyLabel(r models.Recurrence) string {
	weekdays := models.NewRecurrence(models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday)
	weekend := models.NewRecurrence(models.Saturday, models.Sunday)

	switch r & models.EveryDay {
	case models.EveryDay:
		return "Every day"
	case 0:
		return "Never"
	case weekdays:
		return "Weekdays"
	case weekend:
		return "Weekends"
	}

	days := r.Days()
	labels := make([]string, len(days))
	for i, d := range days {
		labels[i] = d.Short()
	}
	return strings.Join(labels, ", ")
}

// View assembles the display view of a habit from its logs. Logs are
// returned newest first.
func View(h models.Habit, logs []models.CompletionLog, today models.Date) models.HabitView {
	completions := make([]models.CompletionLog, 0, len(logs))
	for _, l := range logs {
		if l.HabitID == h.ID {
			completions = append(completions, l)
		}
	}
	sortNewestFirst(completions)

	return models.HabitView{
		Habit:          h,
		FrequencyLabel: FrequencyLabel(h.Frequency),
		Streak:         CurrentStreak(h, completions, today),
		LongestStreak:  LongestStreak(h, completions),
		CompletionRate: CompletionRate(h.ID, completions),
		Completions:    completions,
	}
}

// Summarize computes the dashboard aggregate for one user's habits and logs.
func Summarize(habits []models.Habit, logs []models.CompletionLog, today models.Date) models.Stats {
	byHabit := make(map[int64][]models.CompletionLog, len(habits))
	var stats models.Stats
	for _, l := range logs {
		byHabit[l.HabitID] = append(byHabit[l.HabitID], l)
		if l.Completed {
			stats.TotalCompleted++
		} else {
			stats.TotalSkipped++
		}
	}

	for _, h := range habits {
		habitLogs := byHabit[h.ID]
		if h.Active {
			stats.ActiveHabits++
			stats.CurrentStreak = max(stats.CurrentStreak, CurrentStreak(h, habitLogs, today))
		}
		stats.LongestStreak = max(stats.LongestStreak, LongestStreak(h, habitLogs))
	}
	stats.CompletionRate = Percent(stats.TotalCompleted, stats.TotalCompleted+stats.TotalSkipped)
	return stats
}
