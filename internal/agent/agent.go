// Package agent implements the background intelligence loop. A pacer
// pulls the least recently processed domain on a fixed interval and a
// worker pool runs each domain through fetch, extraction, insight
// generation, and the quality gate.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"llmrank/internal/extract"
	"llmrank/internal/intel"
	"llmrank/internal/progress"
	"llmrank/internal/telemetry"
)

// Processing outcomes recorded per domain attempt.
const (
	outcomePublished = "published"
	outcomeRejected  = "rejected"
	outcomeUnchanged = "unchanged"
)

// Config controls pacing, fan-out, and gating.
type Config struct {
	TargetPerHour    int
	Workers          int
	Interval         time.Duration
	ErrorBackoff     time.Duration
	QualityThreshold float64
	MinContentChars  int
	MaxContentChars  int
	SkipUnchanged    bool
	BlobPrefix       string
	ContentType      string
	Topic            string
}

// Deps collects the collaborators the agent drives. Store, Queue, Probe,
// Producer, Hasher, Clock, and IDs are required; the rest degrade
// gracefully when nil.
type Deps struct {
	Store     intel.Store
	Queue     intel.Queue
	Probe     intel.Fetcher
	Headless  intel.Fetcher
	Detector  intel.HeadlessDetector
	Producer  intel.InsightProducer
	Blobs     intel.BlobStore
	Publisher intel.Publisher
	Hasher    intel.Hasher
	Clock     intel.Clock
	IDs       intel.IDGenerator
	Emitter   progress.Emitter
	Logger    *zap.Logger
}

// Agent owns the pacer and worker pool for continuous domain analysis.
type Agent struct {
	cfg       Config
	store     intel.Store
	queue     intel.Queue
	probe     intel.Fetcher
	headless  intel.Fetcher
	detector  intel.HeadlessDetector
	producer  intel.InsightProducer
	blobs     intel.BlobStore
	publisher intel.Publisher
	hasher    intel.Hasher
	clock     intel.Clock
	ids       intel.IDGenerator
	emitter   progress.Emitter
	logger    *zap.Logger
	extractor *extract.Extractor
	depth     interface{ Len() int }

	runID string

	mu              sync.Mutex
	state           intel.AgentState
	startedAt       time.Time
	lastDomain      string
	lastProcessedAt time.Time

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	domainsProcessed  atomic.Int64
	insightsGenerated atomic.Int64
	insightsRejected  atomic.Int64
	contentUnchanged  atomic.Int64
	errorCount        atomic.Int64
}

// New validates the configuration and builds an Agent.
func New(cfg Config, deps Deps) (*Agent, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("agent workers must be > 0")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("agent interval must be > 0")
	}
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		return nil, fmt.Errorf("agent quality threshold must be within [0,1]")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("agent requires a store")
	case deps.Queue == nil:
		return nil, fmt.Errorf("agent requires a queue")
	case deps.Probe == nil:
		return nil, fmt.Errorf("agent requires a probe fetcher")
	case deps.Producer == nil:
		return nil, fmt.Errorf("agent requires an insight producer")
	case deps.Hasher == nil:
		return nil, fmt.Errorf("agent requires a hasher")
	case deps.Clock == nil:
		return nil, fmt.Errorf("agent requires a clock")
	case deps.IDs == nil:
		return nil, fmt.Errorf("agent requires an id generator")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		cfg:       cfg,
		store:     deps.Store,
		queue:     deps.Queue,
		probe:     deps.Probe,
		headless:  deps.Headless,
		detector:  deps.Detector,
		producer:  deps.Producer,
		blobs:     deps.Blobs,
		publisher: deps.Publisher,
		hasher:    deps.Hasher,
		clock:     deps.Clock,
		ids:       deps.IDs,
		emitter:   deps.Emitter,
		logger:    logger,
		extractor: extract.New(cfg.MaxContentChars),
		state:     intel.AgentStateStopped,
		inflight:  make(map[string]struct{}),
	}
	if lener, ok := deps.Queue.(interface{ Len() int }); ok {
		a.depth = lener
	}
	return a, nil
}

// Run executes the agent until ctx is canceled, then waits for the
// pacer and all workers to drain.
func (a *Agent) Run(ctx context.Context) error {
	runID, err := a.ids.NewID()
	if err != nil {
		return fmt.Errorf("new run id: %w", err)
	}
	a.runID = runID

	a.mu.Lock()
	a.state = intel.AgentStateProcessing
	a.startedAt = a.clock.Now()
	a.mu.Unlock()

	a.logger.Info("agent run starting",
		zap.String("run_id", runID),
		zap.Int("workers", a.cfg.Workers),
		zap.Duration("interval", a.cfg.Interval),
		zap.Float64("quality_threshold", a.cfg.QualityThreshold),
	)

	var wg sync.WaitGroup
	for i := 0; i < a.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.workerLoop(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.paceLoop(ctx)
	}()
	wg.Wait()

	a.mu.Lock()
	a.state = intel.AgentStateStopped
	a.mu.Unlock()
	a.logger.Info("agent run stopped", zap.String("run_id", runID))
	return nil
}

// Snapshot reports point-in-time throughput counters for the health
// endpoint.
func (a *Agent) Snapshot() intel.AgentSnapshot {
	a.mu.Lock()
	state := a.state
	startedAt := a.startedAt
	lastDomain := a.lastDomain
	lastProcessedAt := a.lastProcessedAt
	a.mu.Unlock()

	processed := a.domainsProcessed.Load()
	generated := a.insightsGenerated.Load()
	denominator := processed
	if denominator < 1 {
		denominator = 1
	}
	return intel.AgentSnapshot{
		State:             state,
		StartedAt:         startedAt,
		DomainsProcessed:  processed,
		InsightsGenerated: generated,
		InsightsRejected:  a.insightsRejected.Load(),
		ContentUnchanged:  a.contentUnchanged.Load(),
		Errors:            a.errorCount.Load(),
		SuccessRate:       float64(generated) / float64(denominator),
		QualityThreshold:  a.cfg.QualityThreshold,
		TargetPerHour:     a.cfg.TargetPerHour,
		LastDomain:        lastDomain,
		LastProcessedAt:   lastProcessedAt,
	}
}

func (a *Agent) paceLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		a.pullNext(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) pullNext(ctx context.Context) {
	record, err := a.store.NextDomain(ctx)
	if err != nil {
		if errors.Is(err, intel.ErrNoDomains) {
			a.logger.Debug("no domains to process")
			return
		}
		if ctx.Err() == nil {
			a.logger.Warn("next domain lookup failed", zap.Error(err))
		}
		return
	}
	if !a.markInflight(record.Domain) {
		a.logger.Debug("domain already in flight", zap.String("domain", record.Domain))
		return
	}
	task := intel.ScrapeTask{Domain: record.Domain, Attempt: 1, EnqueuedAt: a.clock.Now()}
	if err := a.queue.Enqueue(ctx, task); err != nil {
		a.clearInflight(record.Domain)
		if ctx.Err() == nil {
			a.logger.Warn("enqueue failed", zap.String("domain", record.Domain), zap.Error(err))
		}
		return
	}
	a.observeQueueDepth()
}

func (a *Agent) workerLoop(ctx context.Context) {
	for {
		task, err := a.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Error("dequeue failed", zap.Error(err))
			}
			return
		}
		a.observeQueueDepth()
		a.processDomain(ctx, task)
	}
}

func (a *Agent) processDomain(ctx context.Context, task intel.ScrapeTask) {
	defer a.clearInflight(task.Domain)
	telemetry.IncActiveWorkers()
	defer telemetry.DecActiveWorkers()

	a.domainsProcessed.Add(1)
	started := a.clock.Now()
	a.emit(progress.Event{TS: started, Stage: progress.StageProcessStart, Domain: task.Domain})
	a.logger.Debug("processing domain", zap.String("domain", task.Domain), zap.Int("attempt", task.Attempt))

	outcome, err := a.analyze(ctx, task.Domain, started)
	finished := a.clock.Now()

	a.mu.Lock()
	a.lastDomain = task.Domain
	a.lastProcessedAt = finished
	a.mu.Unlock()

	if err != nil {
		a.errorCount.Add(1)
		telemetry.ObserveDomainProcessed("error")
		a.emit(progress.Event{
			TS:     finished,
			Stage:  progress.StageProcessError,
			Domain: task.Domain,
			Dur:    finished.Sub(started),
			Note:   err.Error(),
		})
		a.logger.Error("domain processing failed", zap.String("domain", task.Domain), zap.Error(err))
		a.backoff(ctx)
		return
	}
	telemetry.ObserveDomainProcessed(outcome)
}

// analyze runs one domain through the full pipeline and returns the
// processing outcome. Fetch and extraction problems degrade to fallback
// content; store and producer failures abort the attempt.
func (a *Agent) analyze(ctx context.Context, domain string, started time.Time) (string, error) {
	record, err := a.store.Domain(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("load domain: %w", err)
	}

	resp, fetchErr := a.fetch(ctx, domain)
	if fetchErr != nil && ctx.Err() != nil {
		return "", fmt.Errorf("fetch %s: %w", domain, fetchErr)
	}

	content, usedFallback := a.deriveContent(domain, resp, fetchErr)
	now := a.clock.Now()

	contentHash := ""
	if !usedFallback {
		hash, hashErr := a.hasher.Hash([]byte(content))
		if hashErr != nil {
			return "", fmt.Errorf("hash content: %w", hashErr)
		}
		contentHash = hash
		if a.cfg.SkipUnchanged && record.ContentHash != "" && record.ContentHash == contentHash {
			if err := a.store.MarkProcessed(ctx, domain, contentHash, now); err != nil {
				return "", fmt.Errorf("mark processed: %w", err)
			}
			a.contentUnchanged.Add(1)
			a.emit(progress.Event{
				Stage:  progress.StageContentUnchanged,
				Domain: domain,
				Dur:    a.clock.Now().Sub(started),
			})
			a.logger.Debug("content unchanged, skipping insight", zap.String("domain", domain))
			return outcomeUnchanged, nil
		}
	}

	id := insightID(domain, now)
	snapshotURI := a.archive(ctx, domain, id, resp)

	gen, err := a.producer.Produce(ctx, domain, content)
	if err != nil {
		return "", fmt.Errorf("produce insight: %w", err)
	}
	score := intel.QualityScore(gen.Content, content)
	telemetry.ObserveQualityScore(score)

	if score < a.cfg.QualityThreshold {
		// Keep the previous hash so the next rotation retries generation.
		if err := a.store.MarkProcessed(ctx, domain, "", now); err != nil {
			return "", fmt.Errorf("mark processed: %w", err)
		}
		a.insightsRejected.Add(1)
		a.emit(progress.Event{
			Stage:  progress.StageInsightRejected,
			Domain: domain,
			Model:  gen.Source,
			Score:  score,
			Dur:    a.clock.Now().Sub(started),
		})
		a.logger.Info("insight rejected by quality gate",
			zap.String("domain", domain),
			zap.String("model", gen.Source),
			zap.Float64("score", score),
		)
		return outcomeRejected, nil
	}

	insight := intel.Insight{
		ID:                  id,
		Domain:              domain,
		Category:            intel.Categorize(domain),
		Type:                intel.InsightTypeCompetitiveAnalysis,
		Content:             gen.Content,
		QualityScore:        score,
		SourceModel:         gen.Source,
		SourceContentLength: len(content),
		SnapshotURI:         snapshotURI,
		CreatedAt:           now,
	}
	if err := a.store.SaveInsight(ctx, insight); err != nil {
		return "", fmt.Errorf("save insight: %w", err)
	}
	if err := a.store.MarkProcessed(ctx, domain, contentHash, now); err != nil {
		return "", fmt.Errorf("mark processed: %w", err)
	}
	a.publishEvent(ctx, insight)
	a.insightsGenerated.Add(1)
	a.emit(progress.Event{
		Stage:  progress.StageInsightPublished,
		Domain: domain,
		Model:  gen.Source,
		Score:  score,
		Dur:    a.clock.Now().Sub(started),
	})
	a.logger.Info("insight published",
		zap.String("domain", domain),
		zap.String("insight_id", insight.ID),
		zap.String("model", gen.Source),
		zap.Float64("score", score),
	)
	return outcomePublished, nil
}

func (a *Agent) fetch(ctx context.Context, domain string) (intel.FetchResponse, error) {
	req := intel.FetchRequest{URL: "https://" + domain}
	resp, err := a.probe.Fetch(ctx, req)
	if err != nil {
		a.emit(progress.Event{
			Stage:       progress.StageFetchDone,
			Domain:      domain,
			StatusClass: progress.StatusOther,
			Note:        err.Error(),
		})
		a.logger.Warn("probe fetch failed", zap.String("domain", domain), zap.Error(err))
		return intel.FetchResponse{}, err
	}

	if a.shouldPromote(resp) {
		req.UseHeadless = true
		headlessResp, herr := a.headless.Fetch(ctx, req)
		if herr != nil {
			a.logger.Warn("headless promotion failed", zap.String("domain", domain), zap.Error(herr))
		} else {
			telemetry.ObserveHeadlessPromotion()
			a.logger.Debug("headless promotion applied", zap.String("domain", domain))
			resp = headlessResp
		}
	}

	a.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		Domain:      domain,
		Bytes:       int64(len(resp.Body)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
	return resp, nil
}

func (a *Agent) shouldPromote(resp intel.FetchResponse) bool {
	if a.headless == nil || a.detector == nil {
		return false
	}
	return a.detector.ShouldPromote(resp)
}

// deriveContent extracts readable text from the fetched page, or falls
// back to templated content when the page yields too little to analyze.
func (a *Agent) deriveContent(domain string, resp intel.FetchResponse, fetchErr error) (string, bool) {
	if fetchErr != nil || resp.StatusCode != http.StatusOK || len(resp.Body) == 0 {
		return intel.FallbackContent(domain), true
	}
	text, err := a.extractor.Text(resp.Body)
	if err != nil {
		a.logger.Warn("content extraction failed", zap.String("domain", domain), zap.Error(err))
		text = ""
	}
	if len(text) < a.cfg.MinContentChars {
		return intel.FallbackContent(domain), true
	}
	return text, false
}

// archive stores the raw page body best-effort; a failed write never
// blocks insight generation.
func (a *Agent) archive(ctx context.Context, domain, id string, resp intel.FetchResponse) string {
	if a.blobs == nil || resp.StatusCode != http.StatusOK || len(resp.Body) == 0 {
		return ""
	}
	uri, err := a.blobs.PutObject(ctx, a.blobPath(domain, id), a.cfg.ContentType, resp.Body)
	if err != nil {
		a.logger.Warn("snapshot archive failed", zap.String("domain", domain), zap.Error(err))
		return ""
	}
	return uri
}

func (a *Agent) blobPath(domain, id string) string {
	prefix := strings.Trim(a.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", domain, id)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, domain, id)
}

func (a *Agent) publishEvent(ctx context.Context, insight intel.Insight) {
	if a.publisher == nil || a.cfg.Topic == "" {
		return
	}
	event := intel.InsightEvent{
		ID:           insight.ID,
		Domain:       insight.Domain,
		Category:     insight.Category,
		QualityScore: insight.QualityScore,
		SourceModel:  insight.SourceModel,
		SnapshotURI:  insight.SnapshotURI,
		CreatedAt:    insight.CreatedAt,
	}
	if _, err := a.publisher.Publish(ctx, a.cfg.Topic, event); err != nil {
		a.logger.Warn("insight event publish failed", zap.String("domain", insight.Domain), zap.Error(err))
	}
}

func (a *Agent) emit(evt progress.Event) {
	if a.emitter == nil {
		return
	}
	evt.RunID = a.runID
	if evt.TS.IsZero() {
		evt.TS = a.clock.Now()
	}
	a.emitter.Emit(evt)
}

func (a *Agent) backoff(ctx context.Context) {
	if a.cfg.ErrorBackoff <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(a.cfg.ErrorBackoff):
	}
}

func (a *Agent) markInflight(domain string) bool {
	a.inflightMu.Lock()
	defer a.inflightMu.Unlock()
	if _, ok := a.inflight[domain]; ok {
		return false
	}
	a.inflight[domain] = struct{}{}
	return true
}

func (a *Agent) clearInflight(domain string) {
	a.inflightMu.Lock()
	defer a.inflightMu.Unlock()
	delete(a.inflight, domain)
}

func (a *Agent) observeQueueDepth() {
	if a.depth != nil {
		telemetry.SetQueueDepth(a.depth.Len())
	}
}

// insightID builds the public insight identifier, for example
// insight_1700000000_openai_com.
func insightID(domain string, at time.Time) string {
	return fmt.Sprintf("insight_%d_%s", at.Unix(), strings.ReplaceAll(domain, ".", "_"))
}
