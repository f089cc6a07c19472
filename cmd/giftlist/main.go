package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/config"
	"github.com/msawatzky/christmas-list/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "giftlist",
	Short: "Family Christmas gift list service",
	Long: `giftlist keeps each family member's prioritized wish list and lets the
rest of the family see what is still available to buy.

It serves a JSON API, a Telegram bot and Prometheus metrics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rosterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every subcommand uses.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout), nil
}

// loadRoster reads the roster file when one is configured.
func loadRoster(path string, l *logrus.Logger) (*auth.Roster, error) {
	if path == "" {
		l.Info("No ROSTER_PATH set, using the built-in family roster")
		return auth.DefaultRoster(), nil
	}
	roster, err := auth.LoadRoster(path)
	if err != nil {
		return nil, err
	}
	l.WithFields(logrus.Fields{
		"path":    path,
		"members": len(roster.Members()),
	}).Info("Loaded family roster")
	return roster, nil
}
