// cmd/server/migrate.go
package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"plc-monitor/internal/config"
	"plc-monitor/internal/database"
	"plc-monitor/internal/utils"
)

func migrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the trigger event schema",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file")

	withMigrator := func(fn func(*database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if !cfg.Database.Enabled {
				return errors.New("database is disabled (database.enabled=false)")
			}

			logger, err := utils.NewLogger(&cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer utils.CloseLogger(logger)

			db, err := database.NewConnection(&cfg.Database, cfg.GetDatabaseDSN(), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return fn(database.NewMigrator(db, logger))
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  withMigrator(func(m *database.Migrator) error { return m.Up() }),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE:  withMigrator(func(m *database.Migrator) error { return m.Down() }),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Printf("version %d", version)
				if dirty {
					fmt.Print(" (dirty)")
				}
				fmt.Println()
				return nil
			}),
		},
	)

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
	}
	force.RunE = func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return withMigrator(func(m *database.Migrator) error { return m.Force(version) })(cmd, args)
	}
	cmd.AddCommand(force)

	return cmd
}
