// Package cmd defines the CLI commands for the soulcrawl executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mjsoul-tools/soulcrawl/internal/config"
	"github.com/mjsoul-tools/soulcrawl/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soulcrawl",
		Short: "Fetches Mahjong Soul four-player match records into a local database",
		Long: `soulcrawl walks the Amae Koromo game-record API backwards in time and
stores every four-player match it finds as one flat row per game. Runs are
idempotent: re-fetching an overlapping window never duplicates rows, so
interrupted runs can simply be re-run from their resume cursor.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus SOULCRAWL_* env)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newCountCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildLogger loads the configured zap logger; commands call this after
// config is available.
func buildLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}
