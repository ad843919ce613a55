// Package maintenance schedules recurring store upkeep: pruning old
// insights past the retention window and refreshing domain scores from
// what survived.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"llmrank/internal/intel"
	"llmrank/internal/telemetry"
)

// Config controls the scheduled upkeep job. Schedule is a standard
// five-field cron expression.
type Config struct {
	Schedule     string
	KeepInsights int
	RunTimeout   time.Duration
}

// Janitor runs insight pruning and score refreshes on a cron schedule.
type Janitor struct {
	cfg    Config
	store  intel.Store
	logger *zap.Logger
	cron   *cron.Cron
}

// New builds a Janitor. Call Start to begin scheduling.
func New(cfg Config, store intel.Store, logger *zap.Logger) (*Janitor, error) {
	if cfg.Schedule == "" {
		return nil, fmt.Errorf("maintenance schedule is required")
	}
	if cfg.KeepInsights <= 0 {
		return nil, fmt.Errorf("maintenance keep insights must be > 0")
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if store == nil {
		return nil, fmt.Errorf("maintenance requires a store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Janitor{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Schedule, j.runScheduled); err != nil {
		return nil, fmt.Errorf("add maintenance schedule %q: %w", cfg.Schedule, err)
	}
	j.cron = c
	return j, nil
}

// Start begins the cron scheduler.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("maintenance scheduled",
		zap.String("schedule", j.cfg.Schedule),
		zap.Int("keep_insights", j.cfg.KeepInsights),
	)
}

// Stop halts the scheduler and waits for any running pass to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.RunTimeout)
	defer cancel()
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("maintenance run failed", zap.Error(err))
	}
}

// RunOnce executes a single upkeep pass.
func (j *Janitor) RunOnce(ctx context.Context) error {
	started := time.Now()
	pruned, err := j.store.PruneInsights(ctx, j.cfg.KeepInsights)
	if err != nil {
		telemetry.ObserveMaintenanceRun("error", 0)
		return fmt.Errorf("prune insights: %w", err)
	}
	refreshed, err := j.store.RefreshScores(ctx)
	if err != nil {
		telemetry.ObserveMaintenanceRun("error", pruned)
		return fmt.Errorf("refresh scores: %w", err)
	}
	telemetry.ObserveMaintenanceRun("ok", pruned)
	j.logger.Info("maintenance run complete",
		zap.Int64("insights_pruned", pruned),
		zap.Int64("domains_refreshed", refreshed),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}
