package commands

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/benvon/habit-tracker/internal/analytics"
	"github.com/benvon/habit-tracker/internal/cache"
	"github.com/benvon/habit-tracker/internal/config"
	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/services/habits"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSeedCmd(e *env) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample habits and a week of history for a user",
		Long:  "Create four sample habits with completion logs for the previous 7 days. Users that already have habits are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			cfg, db, err := e.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			ctx := cmd.Context()
			user, err := database.NewUserRepository(db).GetByUsername(ctx, username)
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("user %q does not exist", username)
			}
			if err != nil {
				return err
			}

			opts, closeCache := e.statsCache(cfg)
			defer closeCache()

			svc := habits.NewService(
				database.NewHabitRepository(db),
				database.NewLogRepository(db),
				analytics.NewZoneClock(cfg.Location),
				e.log,
				opts...,
			)
			result, err := svc.Seed(ctx, user.ID, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintf(out, "User %s already has habits; nothing seeded.\n", username)
				return nil
			}
			fmt.Fprintf(out, "Created %d habits and %d logs for %s.\n", result.Habits, result.Logs, username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Existing user to seed (required)")
	return cmd
}

// statsCache connects the Redis stats cache so seeding invalidates snapshots
// the API already holds. Without Redis the seed runs with no cache.
func (e *env) statsCache(cfg *config.Config) ([]habits.Option, func()) {
	client, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		e.log.Warn("redis_unavailable_stats_cache_not_invalidated", zap.Error(err))
		return nil, func() {}
	}
	return []habits.Option{habits.WithStatsCache(cache.NewRedisStatsCache(client, cfg.StatsCacheTTL))},
		func() { _ = client.Close() }
}
