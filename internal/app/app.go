// Package app assembles the service from configuration and owns its
// lifecycle: the store, blob storage, event publisher, insight producer
// chain, HTTP server, ingestion agent, and maintenance job.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"llmrank/internal/agent"
	"llmrank/internal/api"
	"llmrank/internal/clock/system"
	"llmrank/internal/config"
	collyfetch "llmrank/internal/fetcher/colly"
	"llmrank/internal/fetcher/headless"
	sha256hash "llmrank/internal/hash/sha256"
	"llmrank/internal/headless/detector"
	uuidgen "llmrank/internal/id/uuid"
	"llmrank/internal/intel"
	"llmrank/internal/llm"
	"llmrank/internal/maintenance"
	"llmrank/internal/progress"
	"llmrank/internal/progress/sinks"
	mempub "llmrank/internal/publisher/memory"
	gcppub "llmrank/internal/publisher/pubsub"
	memqueue "llmrank/internal/queue/memory"
	"llmrank/internal/storage"
	memstore "llmrank/internal/store/memory"
	pgstore "llmrank/internal/store/postgres"
	"llmrank/internal/telemetry"
)

const hubCloseTimeout = 5 * time.Second

// App holds the long-lived services and wires them together at startup.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     intel.Store
	blobs     intel.BlobStore
	blobClose func() error
	pubClose  func() error

	queue    *memqueue.Queue
	headless *headless.Fetcher
	hub      *progress.Hub
	agent    *agent.Agent
	janitor  *maintenance.Janitor
	server   *api.Server
}

// New initializes every service the configuration asks for. It fails
// fast: any provider that cannot be built aborts startup.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	telemetry.Init()

	a := &App{cfg: cfg, logger: logger}

	if cfg.Database.URL == "" {
		logger.Info("using in-memory store, data will not survive restarts")
		a.store = memstore.New()
	} else {
		store, err := pgstore.New(ctx, pgstore.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		logger.Info("connected to postgres")
		a.store = store
	}

	if len(cfg.Seed.Domains) > 0 {
		created, err := a.store.SeedDomains(ctx, seedRecords(cfg.Seed.Domains))
		if err != nil {
			return nil, fmt.Errorf("seed domains: %w", err)
		}
		logger.Info("seed domains registered",
			zap.Int("configured", len(cfg.Seed.Domains)),
			zap.Int64("created", created),
		)
	}

	blobs, blobClose, err := storage.Open(ctx, cfg.Storage.URI)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	a.blobs = blobs
	a.blobClose = blobClose

	var publisher intel.Publisher
	if cfg.PubSub.ProjectID == "" {
		publisher = mempub.New()
	} else {
		p, err := gcppub.New(ctx, gcppub.Config{ProjectID: cfg.PubSub.ProjectID, Topic: cfg.PubSub.Topic})
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		logger.Info("connected to pub/sub", zap.String("topic", cfg.PubSub.Topic))
		publisher = p
		a.pubClose = p.Close
	}

	if cfg.Agent.Enabled {
		if err := a.initAgent(cfg, publisher); err != nil {
			return nil, err
		}
	}

	if cfg.Maintenance.Enabled {
		janitor, err := maintenance.New(maintenance.Config{
			Schedule:     cfg.Maintenance.Schedule,
			KeepInsights: cfg.Maintenance.KeepInsights,
		}, a.store, logger.Named("maintenance"))
		if err != nil {
			return nil, fmt.Errorf("init maintenance: %w", err)
		}
		a.janitor = janitor
	}

	var reporter api.StatusReporter
	if a.agent != nil {
		reporter = a.agent
	}
	a.server = api.NewServer(a.store, reporter, cfg, logger.Named("api"))

	return a, nil
}

// initAgent builds the ingestion pipeline: fetchers, the producer
// chain, the progress hub, and the agent itself.
func (a *App) initAgent(cfg config.Config, publisher intel.Publisher) error {
	producers := make([]intel.InsightProducer, 0, 3)
	if cfg.LLM.OpenAI.APIKey != "" {
		openAI, err := llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.LLM.OpenAI.APIKey,
			Model:       cfg.LLM.OpenAI.Model,
			MaxTokens:   cfg.LLM.OpenAI.MaxTokens,
			Temperature: float32(cfg.LLM.OpenAI.Temperature),
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			Timeout:     time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("init openai producer: %w", err)
		}
		producers = append(producers, openAI)
	}
	if cfg.LLM.Anthropic.APIKey != "" {
		anthropic, err := llm.NewAnthropic(llm.AnthropicConfig{
			APIKey:    cfg.LLM.Anthropic.APIKey,
			Model:     cfg.LLM.Anthropic.Model,
			MaxTokens: cfg.LLM.Anthropic.MaxTokens,
			BaseURL:   cfg.LLM.Anthropic.BaseURL,
			Timeout:   time.Duration(cfg.LLM.Anthropic.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("init anthropic producer: %w", err)
		}
		producers = append(producers, anthropic)
	}
	producers = append(producers, llm.NewHeuristic())
	producer := llm.NewChain(a.logger.Named("llm"), producers...)

	probe := collyfetch.New(collyfetch.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		RespectRobots: cfg.Fetch.RespectRobots,
		Timeout:       cfg.Fetch.FetchTimeout(),
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
	})

	var headlessFetcher intel.Fetcher
	var promoteDetector intel.HeadlessDetector
	if cfg.Headless.Enabled {
		hf, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("init headless fetcher: %w", err)
		}
		a.headless = hf
		headlessFetcher = hf
		promoteDetector = detector.NewHeuristic(cfg.Headless.PromotionThresh)
	}

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("init progress sink: %w", err)
	}
	a.hub = progress.NewHub(
		progress.Config{Logger: a.logger.Named("progress")},
		sinks.NewLogSink(a.logger.Named("progress")),
		promSink,
	)

	a.queue = memqueue.NewQueue(cfg.Agent.QueueDepth)

	ag, err := agent.New(agent.Config{
		TargetPerHour:    cfg.Agent.TargetPerHour,
		Workers:          cfg.Agent.Workers,
		Interval:         cfg.Agent.ProcessInterval(),
		ErrorBackoff:     cfg.Agent.ErrorBackoff(),
		QualityThreshold: cfg.Agent.QualityThreshold,
		MinContentChars:  cfg.Agent.MinContentChars,
		MaxContentChars:  cfg.Agent.MaxContentChars,
		SkipUnchanged:    cfg.Agent.SkipUnchanged,
		BlobPrefix:       cfg.Storage.Prefix,
		ContentType:      cfg.Storage.ContentType,
		Topic:            cfg.PubSub.Topic,
	}, agent.Deps{
		Store:     a.store,
		Queue:     a.queue,
		Probe:     probe,
		Headless:  headlessFetcher,
		Detector:  promoteDetector,
		Producer:  producer,
		Blobs:     a.blobs,
		Publisher: publisher,
		Hasher:    sha256hash.New(),
		Clock:     system.New(),
		IDs:       uuidgen.New(),
		Emitter:   a.hub,
		Logger:    a.logger.Named("agent"),
	})
	if err != nil {
		return fmt.Errorf("init agent: %w", err)
	}
	a.agent = ag
	return nil
}

// Run starts the HTTP server, the agent, and the maintenance schedule,
// then blocks until ctx is canceled or the server fails. Shutdown is
// graceful: the server drains within the configured timeout and the
// agent finishes its in-flight domains.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.server.Handler(),
		ReadTimeout:       time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var wg sync.WaitGroup
	if a.agent != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.agent.Run(ctx); err != nil {
				a.logger.Error("agent run failed", zap.Error(err))
			}
		}()
	}
	if a.janitor != nil {
		a.janitor.Start()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown failed", zap.Error(err))
	}

	wg.Wait()
	if a.janitor != nil {
		a.janitor.Stop()
	}
	return runErr
}

// Close releases every service the App owns. Call it after Run returns.
func (a *App) Close() {
	a.logger.Info("shutting down application services")

	if a.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		cancel()
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.server != nil {
		a.server.Close()
	}
	if a.pubClose != nil {
		if err := a.pubClose(); err != nil {
			a.logger.Warn("pubsub close failed", zap.Error(err))
		}
	}
	if a.blobClose != nil {
		if err := a.blobClose(); err != nil {
			a.logger.Warn("blob store close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

func seedRecords(domains []string) []intel.DomainRecord {
	records := make([]intel.DomainRecord, 0, len(domains))
	for _, domain := range domains {
		name := strings.ToLower(strings.TrimSpace(domain))
		if name == "" {
			continue
		}
		records = append(records, intel.DomainRecord{Domain: name})
	}
	return records
}
