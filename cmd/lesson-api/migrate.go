package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/lesson-scheduler-api/pkg/config"
	"github.com/noah-isme/lesson-scheduler-api/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the lessons schema",
}

func init() {
	migrateCmd.AddCommand(
		migrationCommand("up", "Apply all pending migrations", func(cmd *cobra.Command, m *database.Migrator) error {
			return m.Up(cmd.Context())
		}),
		migrationCommand("down", "Roll back the latest migration", func(cmd *cobra.Command, m *database.Migrator) error {
			return m.Down(cmd.Context())
		}),
		migrationCommand("status", "Print the current schema version", func(cmd *cobra.Command, m *database.Migrator) error {
			version, err := m.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		}),
	)
	rootCmd.AddCommand(migrateCmd)
}

func migrationCommand(use, short string, run func(*cobra.Command, *database.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close() //nolint:errcheck

			migrator, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			return run(cmd, migrator)
		},
	}
}
