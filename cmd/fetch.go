package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mjsoul-tools/soulcrawl/internal/amae"
	"github.com/mjsoul-tools/soulcrawl/internal/api"
	"github.com/mjsoul-tools/soulcrawl/internal/config"
	"github.com/mjsoul-tools/soulcrawl/internal/fetcher"
	"github.com/mjsoul-tools/soulcrawl/internal/progress"
	"github.com/mjsoul-tools/soulcrawl/internal/progress/sinks"
	"github.com/mjsoul-tools/soulcrawl/internal/store"
)

// newFetchCmd creates the 'fetch' subcommand: one complete run over the
// configured window.
func newFetchCmd() *cobra.Command {
	var (
		mode     string
		startMs  int64
		endMs    int64
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Runs one fetch over the configured time window",
		Long: `Walks match records from the newest end of the window backwards until the
window is exhausted, storing each page as it arrives. On failure the resume
cursor is logged; pass it as --end-ms to continue where the run stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mode") {
				cfg.Fetch.Mode = mode
			}
			if cmd.Flags().Changed("start-ms") {
				cfg.Fetch.StartMs = startMs
			}
			if cmd.Flags().Changed("end-ms") {
				cfg.Fetch.EndMs = endMs
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Fetch.MaxPages = maxPages
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runFetch(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "room tier to fetch (gold-south, jade-south, throne-south or a numeric id)")
	cmd.Flags().Int64Var(&startMs, "start-ms", 0, "window lower bound, epoch milliseconds")
	cmd.Flags().Int64Var(&endMs, "end-ms", 0, "window upper bound / resume cursor, epoch milliseconds")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = no cap)")

	return cmd
}

func runFetch(parent context.Context, cfg config.Config) error {
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreConfig(), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close store", zap.Error(cerr))
		}
	}()
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	statusSink := sinks.NewStatusSink()
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		statusSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close", zap.Error(cerr))
		}
	}()

	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.NewServer(
				st,
				statusSink,
				promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				logger,
			).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.Int("port", cfg.Server.Port))
			if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(serr))
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(shutCtx); serr != nil {
				logger.Warn("status server shutdown", zap.Error(serr))
			}
		}()
	}

	opts, err := cfg.FetchOptions(time.Now())
	if err != nil {
		return err
	}

	client := amae.New(cfg.ClientConfig(), logger)
	runner := fetcher.NewRunner(client, st, hub, logger)

	summary, err := runner.Run(ctx, opts)
	if err != nil {
		var runErr *fetcher.RunError
		if errors.As(err, &runErr) {
			logger.Error("run failed; pass the resume cursor as --end-ms to continue",
				zap.Int64("resume_cursor_ms", runErr.CursorMs),
			)
		}
		return err
	}

	total, err := st.CountGames(ctx)
	if err != nil {
		logger.Warn("failed to count stored games", zap.Error(err))
	}
	logger.Info("fetch complete",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("pages", summary.Pages),
		zap.Int("fetched", summary.Fetched),
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("last_cursor_ms", summary.LastCursorMs),
		zap.Int64("total_stored", total),
	)
	return nil
}
