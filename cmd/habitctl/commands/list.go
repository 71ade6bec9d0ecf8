package commands

import (
	"fmt"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/spf13/cobra"
)

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Summarize stored configuration",
		Long:  "Show the schema version and the rate limit and CORS settings stored in the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := e.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			migrator, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			version, err := migrator.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Database: %s, schema version %d\n", db.Dialect().Name(), version)
			fmt.Fprintf(out, "Timezone: %s\n\n", cfg.Location)

			rl, err := database.NewRatelimitConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			printRatelimit(cmd, rl)
			fmt.Fprintln(out)

			cors, err := database.NewCorsConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			printCors(cmd, cors)
			return nil
		},
	}
}
