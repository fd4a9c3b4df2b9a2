// Package main is the entry point for the papersearch CLI. It runs the search
// pipeline once from the command line and manages the cache store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/paper-search-service/internal/app"
	"github.com/helixir/paper-search-service/internal/config"
	"github.com/helixir/paper-search-service/internal/observability"
)

var (
	logLevel     string
	drainTimeout time.Duration
)

// rootCmd is the base command for the papersearch CLI.
var rootCmd = &cobra.Command{
	Use:   "papersearch",
	Short: "Search academic papers and manage the paper search cache",
	Long: `papersearch runs the paper search pipeline from the command line.

Configuration is read the same way as the server: config.yaml in the working
directory, ./config or /etc/paper-search-service, overridden by PAPERSEARCH_*
environment variables.

Examples:
  papersearch search "intermittent fasting and sleep" --language en
  papersearch summary s2:abc123 --language ja
  papersearch migrate up
  papersearch sweep`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&drainTimeout, "drain-timeout", 30*time.Second,
		"how long to wait for background work before exiting")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime loads configuration and a console logger writing to stderr so
// stdout carries only command output.
func loadRuntime() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	})
	return cfg, logger.With().Str("component", "cli").Logger(), nil
}

// withApp builds the application, runs fn and then drains background work
// before closing.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	a, err := app.Build(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close application")
		}
	}()

	runErr := fn(ctx, a)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.Drain(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("background work did not finish before exit")
	}
	return runErr
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
