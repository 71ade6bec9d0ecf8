package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benvon/habit-tracker/internal/models"
)

// HabitRepository handles habit and recurrence persistence.
// Every read and write is scoped to the owning user.
type HabitRepository struct {
	db *DB
}

// NewHabitRepository creates a new habit repository
func NewHabitRepository(db *DB) *HabitRepository {
	return &HabitRepository{db: db}
}

const habitColumns = `id, user_id, name, description, category, color, active, created_at`

func scanHabit(row interface{ Scan(dest ...any) error }, h *models.Habit) error {
	return row.Scan(
		&h.ID,
		&h.UserID,
		&h.Name,
		&h.Description,
		&h.Category,
		&h.Color,
		&h.Active,
		&h.CreatedAt,
	)
}

// Create inserts a habit with its recurrence and sets its ID.
func (r *HabitRepository) Create(ctx context.Context, habit *models.Habit) error {
	return r.db.WithTx(ctx, func(tx *Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO habits (user_id, name, description, category, color, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`,
			habit.UserID,
			habit.Name,
			habit.Description,
			habit.Category,
			habit.Color,
			habit.Active,
			habit.CreatedAt,
		).Scan(&habit.ID)
		if err != nil {
			return fmt.Errorf("failed to create habit: %w", err)
		}
		return insertFrequency(ctx, tx, habit.ID, habit.Frequency)
	})
}

func insertFrequency(ctx context.Context, q querier, habitID int64, r models.Recurrence) error {
	for _, day := range r.Days() {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO habit_frequencies (habit_id, weekday) VALUES (?, ?)`,
			habitID, string(day),
		); err != nil {
			return fmt.Errorf("failed to insert habit frequency: %w", err)
		}
	}
	return nil
}

func loadFrequency(ctx context.Context, q querier, habitID int64) (models.Recurrence, error) {
	rows, err := q.QueryContext(ctx, `SELECT weekday FROM habit_frequencies WHERE habit_id = ?`, habitID)
	if err != nil {
		return 0, fmt.Errorf("failed to query habit frequency: %w", err)
	}
	defer rows.Close()

	var r models.Recurrence
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return 0, fmt.Errorf("failed to scan habit frequency: %w", err)
		}
		r = r.With(models.Weekday(day))
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating habit frequency: %w", err)
	}
	return r, nil
}

// GetByID retrieves a habit owned by userID.
func (r *HabitRepository) GetByID(ctx context.Context, userID, id int64) (*models.Habit, error) {
	h := &models.Habit{}
	err := scanHabit(r.db.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = ? AND user_id = ?`,
		id, userID,
	), h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}

	h.Frequency, err = loadFrequency(ctx, r.db, h.ID)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ListByUser returns every habit of the user ordered by ID.
func (r *HabitRepository) ListByUser(ctx context.Context, userID int64) ([]models.Habit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}

	var habits []models.Habit
	for rows.Next() {
		var h models.Habit
		if err := scanHabit(rows, &h); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating habits: %w", err)
	}
	rows.Close()

	if len(habits) == 0 {
		return habits, nil
	}

	freqRows, err := r.db.QueryContext(ctx, `
		SELECT f.habit_id, f.weekday
		FROM habit_frequencies f
		JOIN habits h ON h.id = f.habit_id
		WHERE h.user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query habit frequencies: %w", err)
	}
	defer freqRows.Close()

	byID := make(map[int64]*models.Habit, len(habits))
	for i := range habits {
		byID[habits[i].ID] = &habits[i]
	}
	for freqRows.Next() {
		var habitID int64
		var day string
		if err := freqRows.Scan(&habitID, &day); err != nil {
			return nil, fmt.Errorf("failed to scan habit frequency: %w", err)
		}
		if h, ok := byID[habitID]; ok {
			h.Frequency = h.Frequency.With(models.Weekday(day))
		}
	}
	if err := freqRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating habit frequencies: %w", err)
	}
	return habits, nil
}

// ListUserIDsWithHabits returns the IDs of users owning at least one active habit.
func (r *HabitRepository) ListUserIDsWithHabits(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM habits WHERE active = ? ORDER BY user_id`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query habit owners: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan habit owner: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating habit owners: %w", err)
	}
	return ids, nil
}

// CountByUser returns how many habits the user owns.
func (r *HabitRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM habits WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count habits: %w", err)
	}
	return n, nil
}

// Update writes the habit's editable fields. When replaceFrequency is set the
// stored recurrence is replaced by habit.Frequency in the same transaction.
func (r *HabitRepository) Update(ctx context.Context, habit *models.Habit, replaceFrequency bool) error {
	return r.db.WithTx(ctx, func(tx *Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE habits
			SET name = ?, description = ?, category = ?, color = ?, active = ?
			WHERE id = ? AND user_id = ?
		`,
			habit.Name,
			habit.Description,
			habit.Category,
			habit.Color,
			habit.Active,
			habit.ID,
			habit.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update habit: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("habit %d: %w", habit.ID, ErrNotFound)
		}

		if !replaceFrequency {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM habit_frequencies WHERE habit_id = ?`, habit.ID); err != nil {
			return fmt.Errorf("failed to clear habit frequency: %w", err)
		}
		return insertFrequency(ctx, tx, habit.ID, habit.Frequency)
	})
}

// Delete removes a habit together with its logs and recurrence.
func (r *HabitRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.db.WithTx(ctx, func(tx *Tx) error {
		var owner int64
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM habits WHERE id = ? AND user_id = ?`, id, userID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("habit %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get habit: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM habit_logs WHERE habit_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete habit logs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM habit_frequencies WHERE habit_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete habit frequency: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete habit: %w", err)
		}
		return nil
	})
}
