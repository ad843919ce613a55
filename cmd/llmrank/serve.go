package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"llmrank/internal/app"
)

// newServeCmd creates the 'serve' subcommand. It runs the HTTP API, the
// background agent when enabled, and the maintenance cron until the
// process receives SIGINT or SIGTERM.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the API server and background agent",
		Long: `Runs the llmrank service: the authenticated domain intelligence API,
the autonomous processing agent (when enabled), and the insight
retention janitor. The process drains cleanly on SIGINT and SIGTERM.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run service: %w", err)
	}
	logger.Info("service stopped")
	return nil
}
