package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"farmreport/migrations"
	"farmreport/pkg/database"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the activity_log schema",
	}

	run := func(name string, fn func(m *database.Migrator, cmd *cobra.Command) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: "Run migrations " + name,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := flags.load()
				if err != nil {
					return err
				}
				if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "postgresql" {
					return fmt.Errorf("migrations require database.driver=postgres, got %s", cfg.Database.Driver)
				}

				db, err := database.NewPostgresDB(cmd.Context(), &cfg.Database, cfg.App.Name)
				if err != nil {
					return err
				}
				defer db.Close()

				return fn(database.NewMigrator(db.Pool, migrations.FS, "."), cmd)
			},
		}
	}

	cmd.AddCommand(
		run("up", func(m *database.Migrator, cmd *cobra.Command) error { return m.Up(cmd.Context()) }),
		run("down", func(m *database.Migrator, cmd *cobra.Command) error { return m.Down(cmd.Context()) }),
		run("status", func(m *database.Migrator, cmd *cobra.Command) error {
			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-8s %s\n", s.Version, state, s.Path)
			}
			return nil
		}),
	)
	return cmd
}
