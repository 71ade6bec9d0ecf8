package database

import (
	"context"
	"fmt"

	"github.com/benvon/habit-tracker/internal/models"
)

// LogRepository handles completion log persistence.
type LogRepository struct {
	db *DB
}

// NewLogRepository creates a new completion log repository
func NewLogRepository(db *DB) *LogRepository {
	return &LogRepository{db: db}
}

// Upsert records the completion state of a habit on a day. The (habit_id, date)
// unique constraint makes this a single atomic write: concurrent calls for the
// same key leave exactly one row holding the last written value.
func (r *LogRepository) Upsert(ctx context.Context, habitID int64, date models.Date, completed bool) (*models.CompletionLog, error) {
	l := &models.CompletionLog{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO habit_logs (habit_id, date, completed)
		VALUES (?, ?, ?)
		ON CONFLICT (habit_id, date) DO UPDATE SET
			completed = EXCLUDED.completed
		RETURNING id, habit_id, date, completed
	`, habitID, date, completed).Scan(&l.ID, &l.HabitID, &l.Date, &l.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert habit log: %w", err)
	}
	return l, nil
}

func (r *LogRepository) queryLogs(ctx context.Context, query string, args ...any) ([]models.CompletionLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query habit logs: %w", err)
	}
	defer rows.Close()

	logs := []models.CompletionLog{}
	for rows.Next() {
		var l models.CompletionLog
		if err := rows.Scan(&l.ID, &l.HabitID, &l.Date, &l.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan habit log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating habit logs: %w", err)
	}
	return logs, nil
}

// ListByHabit returns a habit's logs, newest first.
func (r *LogRepository) ListByHabit(ctx context.Context, habitID int64) ([]models.CompletionLog, error) {
	return r.queryLogs(ctx, `
		SELECT id, habit_id, date, completed
		FROM habit_logs
		WHERE habit_id = ?
		ORDER BY date DESC
	`, habitID)
}

// ListByUser returns the logs of every habit the user owns, newest first.
func (r *LogRepository) ListByUser(ctx context.Context, userID int64) ([]models.CompletionLog, error) {
	return r.queryLogs(ctx, `
		SELECT l.id, l.habit_id, l.date, l.completed
		FROM habit_logs l
		JOIN habits h ON h.id = l.habit_id
		WHERE h.user_id = ?
		ORDER BY l.date DESC, l.habit_id
	`, userID)
}

// ListByUserBetween returns the user's logs with start <= date <= end, newest
// first. A non-nil habitID narrows the result to that habit.
func (r *LogRepository) ListByUserBetween(ctx context.Context, userID int64, start, end models.Date, habitID *int64) ([]models.CompletionLog, error) {
	query := `
		SELECT l.id, l.habit_id, l.date, l.completed
		FROM habit_logs l
		JOIN habits h ON h.id = l.habit_id
		WHERE h.user_id = ? AND l.date >= ? AND l.date <= ?
	`
	args := []any{userID, start, end}
	if habitID != nil {
		query += ` AND l.habit_id = ?`
		args = append(args, *habitID)
	}
	query += ` ORDER BY l.date DESC, l.habit_id`
	return r.queryLogs(ctx, query, args...)
}

// CountForDay returns how many rows exist for a (habit, date) pair.
func (r *LogRepository) CountForDay(ctx context.Context, habitID int64, date models.Date) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM habit_logs WHERE habit_id = ? AND date = ?`,
		habitID, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count habit logs: %w", err)
	}
	return n, nil
}
