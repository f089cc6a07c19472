package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/msawatzky/christmas-list/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(cfg.MigrationsPath)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (one step by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("steps must be a positive number, got %q", args[0])
			}
			steps = n
		}

		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		return db.MigrateDown(cfg.MigrationsPath, steps)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := db.MigrationVersion(cfg.MigrationsPath)
		if err != nil {
			return err
		}
		if dirty {
			fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), version)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func openDatabase() (*config.Config, *config.Database, error) {
	cfg, l, err := setup()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreBackend != config.StorePostgres {
		return nil, nil, fmt.Errorf("migrations need STORE_BACKEND=%s", config.StorePostgres)
	}
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
