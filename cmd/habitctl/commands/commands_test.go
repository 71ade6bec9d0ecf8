package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// setupEnv points habitctl at a fresh SQLite database and an unreachable Redis.
func setupEnv(t *testing.T) string {
	t.Helper()
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "ctl.db")
	t.Setenv("DATABASE_URL", dbURL)
	t.Setenv("REDIS_URL", "redis://127.0.0.1:1/0")
	t.Setenv("APP_TIMEZONE", "UTC")
	return dbURL
}

func TestMigrate(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 2 migration(s)")

	out, err = run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 0 migration(s); schema version is 2.")
}

func TestRatelimitCommands(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	out, err := run(t, "ratelimit", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No rate limit configuration")

	_, err = run(t, "ratelimit", "set", "--rate", "not-a-rate")
	assert.Error(t, err)
	_, err = run(t, "ratelimit", "set")
	assert.Error(t, err)

	_, err = run(t, "ratelimit", "set", "--rate", "100-M")
	require.NoError(t, err)
	out, err = run(t, "ratelimit", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Rate: 100-M")
}

func TestCorsCommands(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	_, err = run(t, "cors", "set", "--origins", " , ")
	assert.Error(t, err)

	_, err = run(t, "cors", "set", "--origins", "https://a.example, https://b.example,https://a.example", "--max-age", "600")
	require.NoError(t, err)

	out, err := run(t, "cors", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Allowed origins: https://a.example, https://b.example")
	assert.Contains(t, out, "Max-Age: 600")
}

func TestList(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Database: sqlite, schema version 2")
	assert.Contains(t, out, "Timezone: UTC")
	assert.Contains(t, out, "No rate limit configuration")
	assert.Contains(t, out, "No CORS configuration")
}

func TestSeed(t *testing.T) {
	dbURL := setupEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)

	_, err = run(t, "seed")
	assert.Error(t, err)

	_, err = run(t, "seed", "--username", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	db, err := database.New(dbURL)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, database.NewUserRepository(db).Create(context.Background(), &models.User{Username: "carol", PasswordHash: "x"}))

	out, err := run(t, "seed", "--username", "carol")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 4 habits")

	out, err = run(t, "seed", "--username", "carol")
	require.NoError(t, err)
	assert.Contains(t, out, "already has habits")
}

func TestConfigErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
