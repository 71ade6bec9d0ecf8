package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

func newRatelimitCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the request rate limit (e.g. 5-S, 100-M). Running servers pick up changes within a minute.",
	}
	cmd.AddCommand(newRatelimitListCmd(e))
	cmd.AddCommand(newRatelimitSetCmd(e))
	return cmd
}

func newRatelimitListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := e.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			c, err := database.NewRatelimitConfigRepository(db).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			printRatelimit(cmd, c)
			return nil
		},
	}
}

func newRatelimitSetCmd(e *env) *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the rate limit",
		Long:  "Update the rate limit (e.g. 5-S, 100-M, 1000-H).",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}
			if _, err := limiter.NewRateFromFormatted(rate); err != nil {
				return fmt.Errorf("invalid rate %q: %w", rate, err)
			}
			_, db, err := e.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := database.NewRatelimitConfigRepository(db).Set(cmd.Context(), &models.RatelimitConfig{Rate: rate}); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rate limit configuration updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	return cmd
}

func printRatelimit(cmd *cobra.Command, c *models.RatelimitConfig) {
	out := cmd.OutOrStdout()
	if c == nil {
		fmt.Fprintln(out, "No rate limit configuration in database. Use 'ratelimit set' to add one.")
		return
	}
	fmt.Fprintln(out, "Rate limit configuration:")
	fmt.Fprintf(out, "  Rate: %s\n", c.Rate)
}
