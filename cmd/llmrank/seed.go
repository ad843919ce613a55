package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"llmrank/internal/intel"
	pgstore "llmrank/internal/store/postgres"
)

// newSeedCmd creates the 'seed' subcommand that registers domains from a
// JSON list file so the agent can start processing them.
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Registers domains from a JSON list file",
		Long: `Reads a JSON array of domain names and registers each one, skipping
domains that already exist. Seeded domains start unscored and are
picked up by the agent on its next cycle.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Database.URL == "" {
		return errors.New("database.url is not configured")
	}

	records, err := loadDomainList(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s contains no domains", args[0])
	}

	store, err := pgstore.New(cmd.Context(), pgstore.Config{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init postgres store: %w", err)
	}
	defer store.Close()

	created, err := store.SeedDomains(cmd.Context(), records)
	if err != nil {
		return fmt.Errorf("seed domains: %w", err)
	}
	logger.Info("seed complete",
		zap.Int("listed", len(records)),
		zap.Int64("created", created),
	)
	return nil
}

// loadDomainList parses a JSON array of domain names into seedable
// records, lowercasing each name and dropping blanks and duplicates.
func loadDomainList(path string) ([]intel.DomainRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain list: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse domain list: %w", err)
	}

	seen := make(map[string]struct{}, len(names))
	records := make([]intel.DomainRecord, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		records = append(records, intel.DomainRecord{Domain: name})
	}
	return records, nil
}
