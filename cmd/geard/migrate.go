package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gear-maintenance-backend/config"
	"gear-maintenance-backend/internal/db"
)

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Creates or updates every table. On Postgres with database.enforce_non_overlap
set, the attachment exclusion constraint is installed as well.

Safe to run multiple times (idempotent).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if _, err := db.Init(&cfg.Database); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database schema is up to date")
			return nil
		},
	}
}
