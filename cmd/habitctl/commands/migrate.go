package commands

import (
	"fmt"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := e.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			migrator, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			applied, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			version, err := migrator.CurrentVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s); schema version is %d.\n", applied, version)
			return nil
		},
	}
}
