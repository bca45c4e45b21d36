package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mjsoul-tools/soulcrawl/internal/config"
	"github.com/mjsoul-tools/soulcrawl/internal/store"
)

// newCountCmd creates the 'count' subcommand, a quick look at how many games
// the configured database holds.
func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Prints the number of stored games",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			st, err := store.Open(cmd.Context(), cfg.StoreConfig(), logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close() //nolint:errcheck // read-only access

			if err := st.Init(cmd.Context()); err != nil {
				return fmt.Errorf("init store: %w", err)
			}
			count, err := st.CountGames(cmd.Context())
			if err != nil {
				return fmt.Errorf("count games: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}
