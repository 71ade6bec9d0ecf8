package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a migrated SQLite database in a temporary directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New("sqlite://" + filepath.Join(t.TempDir(), "habits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := NewMigrator(db)
	require.NoError(t, err)
	_, err = migrator.Up(context.Background())
	require.NoError(t, err)
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *models.User {
	t.Helper()

	u := &models.User{Username: username, PasswordHash: "hash"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func createTestHabit(t *testing.T, db *DB, userID int64, name string, r models.Recurrence) *models.Habit {
	t.Helper()

	h := &models.Habit{
		UserID:    userID,
		Name:      name,
		Category:  models.CategoryHealth,
		Color:     models.ColorPrimary,
		Active:    true,
		CreatedAt: models.MustParseDate("2025-01-01"),
		Frequency: r,
	}
	require.NoError(t, NewHabitRepository(db).Create(context.Background(), h), fmt.Sprintf("create habit %s", name))
	return h
}
