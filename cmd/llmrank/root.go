package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"llmrank/internal/config"
	"llmrank/internal/logging"
)

var cfgFile string

// newRootCmd creates the root command and registers every subcommand.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llmrank",
		Short: "Domain intelligence service for the LLM search era.",
		Long: `llmrank continuously crawls registered domains, scores them with a chain
of LLM insight producers, and serves the resulting rankings over an
authenticated HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults to LLMRANK_* environment variables)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())

	return cmd
}

// bootstrap loads configuration and builds the logger shared by every
// subcommand.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
