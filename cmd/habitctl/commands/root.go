// Package commands implements the habitctl admin CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/benvon/habit-tracker/internal/config"
	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is the state shared by subcommands once the root command has run.
type env struct {
	verbose bool
	log     *zap.Logger
}

// NewRootCmd builds the habitctl command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "habitctl",
		Short:         "Administration tool for the habit tracker",
		Long:          "Apply migrations, seed sample data and manage runtime settings stored in the database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewCLILogger(e.verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			e.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync(e.log)
		},
	}
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newMigrateCmd(e))
	root.AddCommand(newSeedCmd(e))
	root.AddCommand(newRatelimitCmd(e))
	root.AddCommand(newCorsCmd(e))
	root.AddCommand(newListCmd(e))
	return root
}

// openDB loads the configuration and connects to its database.
func (e *env) openDB() (*config.Config, *database.DB, error) {
	cfg, err := config.LoadCore()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	e.log.Debug("connected_to_database", zap.String("dialect", db.Dialect().Name()))
	return cfg, db, nil
}

func closeDB(db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}
