package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/spf13/cobra"
)

func newCorsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options stored in the database.",
	}
	cmd.AddCommand(newCorsListCmd(e))
	cmd.AddCommand(newCorsSetCmd(e))
	return cmd
}

func newCorsListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := e.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			c, err := database.NewCorsConfigRepository(db).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			printCors(cmd, c)
			return nil
		},
	}
}

func newCorsSetCmd(e *env) *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated).",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := models.SplitOrigins(origins)
			if len(parsed) == 0 {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}
			_, db, err := e.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			c := &models.CorsConfig{
				AllowedOrigins:   strings.Join(parsed, ","),
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := database.NewCorsConfigRepository(db).Set(cmd.Context(), c); err != nil {
				return fmt.Errorf("set cors config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	return cmd
}

func printCors(cmd *cobra.Command, c *models.CorsConfig) {
	out := cmd.OutOrStdout()
	if c == nil {
		fmt.Fprintln(out, "No CORS configuration in database. Use 'cors set' to add one.")
		return
	}
	fmt.Fprintln(out, "CORS configuration:")
	fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(c.Origins(), ", "))
	fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
	fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
}
