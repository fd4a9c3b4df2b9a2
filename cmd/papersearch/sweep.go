package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-search-service/internal/app"
	"github.com/helixir/paper-search-service/internal/cache"
)

var sweepInterval time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired cache entries",
	Long: `Sweep removes expired entries from the configured cache backend and runs
value log GC where the backend supports it. With --interval it keeps sweeping
until interrupted.

Examples:
  papersearch sweep
  papersearch sweep --interval 30m`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "sweep repeatedly at this interval")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	storage := app.OpenStorage(cmd.Context(), cfg, logger, nil)
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close storage")
		}
	}()

	if sweepInterval <= 0 {
		janitor := cache.NewJanitor(storage.Cache, cache.DefaultSweepInterval, logger)
		result, err := janitor.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired entries (gc: %t)\n", result.Purged, result.Collected)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	janitor := cache.NewJanitor(storage.Cache, sweepInterval, logger)
	if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
