package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"llmrank/internal/clock/system"
	"llmrank/internal/extract"
	sha256hash "llmrank/internal/hash/sha256"
	"llmrank/internal/headless/detector"
	"llmrank/internal/intel"
	"llmrank/internal/progress"
	mempub "llmrank/internal/publisher/memory"
	memqueue "llmrank/internal/queue/memory"
	memblob "llmrank/internal/storage/memory"
	memstore "llmrank/internal/store/memory"
	"llmrank/internal/telemetry"
)

const goodInsight = "openai.com demonstrates strong trust signals and a leading market position. " +
	"Competitive pressure from rivals remains intense across every segment they serve."

func richPage() []byte {
	text := strings.Repeat("OpenAI builds frontier models and sells an API platform used by developers worldwide. ", 8)
	return []byte("<html><body><article><p>" + text + "</p></article></body></html>")
}

func newTestAgent(t *testing.T, cfg Config, deps Deps) *Agent {
	t.Helper()
	telemetry.Init()
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Millisecond
	}
	if cfg.QualityThreshold == 0 {
		cfg.QualityThreshold = 0.70
	}
	if cfg.MinContentChars == 0 {
		cfg.MinContentChars = 100
	}
	if cfg.MaxContentChars == 0 {
		cfg.MaxContentChars = 2000
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "snapshots"
	}
	if cfg.Topic == "" {
		cfg.Topic = "domain-insights"
	}
	if deps.Queue == nil {
		deps.Queue = memqueue.NewQueue(4)
	}
	if deps.Hasher == nil {
		deps.Hasher = sha256hash.New()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = &stubIDs{}
	}
	agent, err := New(cfg, deps)
	require.NoError(t, err)
	return agent
}

func seedDomain(t *testing.T, store intel.Store, name string) {
	t.Helper()
	created, err := store.SeedDomains(context.Background(), []intel.DomainRecord{{Domain: name}})
	require.NoError(t, err)
	require.EqualValues(t, 1, created)
}

func TestNewValidatesConfigAndDeps(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Workers: 0, Interval: time.Second}, Deps{})
	require.ErrorContains(t, err, "workers")

	_, err = New(Config{Workers: 1, Interval: 0}, Deps{})
	require.ErrorContains(t, err, "interval")

	_, err = New(Config{Workers: 1, Interval: time.Second}, Deps{})
	require.ErrorContains(t, err, "store")
}

func TestProcessDomainPublishesInsight(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedDomain(t, store, "openai.com")
	fetcher := &stubFetcher{resp: intel.FetchResponse{
		URL:        "https://openai.com",
		StatusCode: 200,
		Body:       richPage(),
		Duration:   120 * time.Millisecond,
	}}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: goodInsight, Source: "gpt-4o"}}
	blobs := memblob.NewBlobStore()
	publisher := mempub.New()
	emitter := &stubEmitter{}

	agent := newTestAgent(t, Config{}, Deps{
		Store:     store,
		Probe:     fetcher,
		Producer:  producer,
		Blobs:     blobs,
		Publisher: publisher,
		Emitter:   emitter,
	})

	agent.processDomain(context.Background(), intel.ScrapeTask{Domain: "openai.com", Attempt: 1})

	insights, err := store.InsightsForDomain(context.Background(), "openai.com", 10)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, goodInsight, insights[0].Content)
	require.Equal(t, "gpt-4o", insights[0].SourceModel)
	require.Equal(t, "artificial_intelligence", insights[0].Category)
	require.Equal(t, intel.InsightTypeCompetitiveAnalysis, insights[0].Type)
	require.True(t, strings.HasPrefix(insights[0].ID, "insight_"))
	require.True(t, strings.HasSuffix(insights[0].ID, "_openai_com"))
	require.GreaterOrEqual(t, insights[0].QualityScore, 0.70)
	require.NotEmpty(t, insights[0].SnapshotURI)

	record, err := store.Domain(context.Background(), "openai.com")
	require.NoError(t, err)
	require.NotEmpty(t, record.ContentHash)
	require.NotNil(t, record.LastProcessedAt)

	require.Len(t, publisher.Messages(), 1)
	require.Equal(t, 1, blobs.Len())
	require.Contains(t, producer.seenContent(), "OpenAI builds frontier models")

	snap := agent.Snapshot()
	require.EqualValues(t, 1, snap.DomainsProcessed)
	require.EqualValues(t, 1, snap.InsightsGenerated)
	require.InDelta(t, 1.0, snap.SuccessRate, 1e-9)
	require.Equal(t, "openai.com", snap.LastDomain)

	stages := emitter.stages()
	require.Contains(t, stages, progress.StageProcessStart)
	require.Contains(t, stages, progress.StageFetchDone)
	require.Contains(t, stages, progress.StageInsightPublished)
}

func TestProcessDomainRejectsLowQualityInsight(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedDomain(t, store, "openai.com")
	fetcher := &stubFetcher{resp: intel.FetchResponse{StatusCode: 200, Body: richPage()}}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: "ok", Source: "gpt-4o"}}
	emitter := &stubEmitter{}

	agent := newTestAgent(t, Config{}, Deps{
		Store:    store,
		Probe:    fetcher,
		Producer: producer,
		Emitter:  emitter,
	})

	agent.processDomain(context.Background(), intel.ScrapeTask{Domain: "openai.com"})

	insights, err := store.InsightsForDomain(context.Background(), "openai.com", 10)
	require.NoError(t, err)
	require.Empty(t, insights)

	record, err := store.Domain(context.Background(), "openai.com")
	require.NoError(t, err)
	require.NotNil(t, record.LastProcessedAt)
	require.Empty(t, record.ContentHash)

	snap := agent.Snapshot()
	require.EqualValues(t, 1, snap.InsightsRejected)
	require.EqualValues(t, 0, snap.InsightsGenerated)
	require.Contains(t, emitter.stages(), progress.StageInsightRejected)
}

func TestProcessDomainSkipsUnchangedContent(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedDomain(t, store, "openai.com")

	text, err := extract.New(2000).Text(richPage())
	require.NoError(t, err)
	hash, err := sha256hash.New().Hash([]byte(text))
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(context.Background(), "openai.com", hash, time.Now().UTC()))

	fetcher := &stubFetcher{resp: intel.FetchResponse{StatusCode: 200, Body: richPage()}}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: goodInsight, Source: "gpt-4o"}}
	emitter := &stubEmitter{}

	agent := newTestAgent(t, Config{SkipUnchanged: true}, Deps{
		Store:    store,
		Probe:    fetcher,
		Producer: producer,
		Emitter:  emitter,
	})

	agent.processDomain(context.Background(), intel.ScrapeTask{Domain: "openai.com"})

	require.Equal(t, 0, producer.callCount())
	insights, err := store.InsightsForDomain(context.Background(), "openai.com", 10)
	require.NoError(t, err)
	require.Empty(t, insights)

	snap := agent.Snapshot()
	require.EqualValues(t, 1, snap.ContentUnchanged)
	require.Contains(t, emitter.stages(), progress.StageContentUnchanged)
}

func TestProcessDomainRegeneratesWhenSkipDisabled(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedDomain(t, store, "openai.com")

	text, err := extract.New(2000).Text(richPage())
	require.NoError(t, err)
	hash, err := sha256hash.New().Hash([]byte(text))
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(context.Background(), "openai.com", hash, time.Now().UTC()))

	fetcher := &stubFetcher{resp: intel.FetchResponse{StatusCode: 200, Body: richPage()}}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: goodInsight, Source: "gpt-4o"}}

	agent := newTestAgent(t, Config{}, Deps{
		Store:    store,
		Probe:    fetcher,
		Producer: producer,
	})

	agent.processDomain(context.Background(), intel.ScrapeTask{Domain: "openai.com"})

	require.Equal(t, 1, producer.callCount())
	insights, err := store.InsightsForDomain(context.Background(), "openai.com", 10)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	snap := agent.Snapshot()
	require.EqualValues(t, 0, snap.ContentUnchanged)
}

func TestProcessDomainFallsBackWhenFetchFails(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedDomain(t, store, "unreachable.example")
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: goodInsight, Source: "gpt-4o"}}
	blobs := memblob.NewBlobStore()

	agent := newTestAgent(t, Config{}, Deps{
		Store:    store,
		Probe:    fetcher,
		Producer: producer,
		Blobs:    blobs,
	})

	agent.processDomain(context.Background(), intel.ScrapeTask{Domain: "unreachable.example"})

	require.Equal(t, intel.FallbackContent("unreachable.example"), producer.seenContent())
	insights, err := store.InsightsForDomain(context.Background(), "unreachable.example", 10)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Empty(t, insights[0].SnapshotURI)
	require.Equal(t, 0, blobs.Len())

	record, err := store.Domain(context.Background(), "unreachable.example")
	require.NoError(t, err)
	require.Empty(t, record.ContentHash)
}

func TestProcessDomainPromotesToHeadless(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedDomain(t, store, "openai.com")
	probe := &stubFetcher{resp: intel.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><body><div id="root"></div><script src="/app.js"></script></body></html>`),
	}}
	headless := &stubFetcher{resp: intel.FetchResponse{
		StatusCode:   200,
		Body:         richPage(),
		UsedHeadless: true,
	}}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: goodInsight, Source: "gpt-4o"}}
	blobs := memblob.NewBlobStore()

	agent := newTestAgent(t, Config{}, Deps{
		Store:    store,
		Probe:    probe,
		Headless: headless,
		Detector: detector.NewHeuristic(2048),
		Producer: producer,
		Blobs:    blobs,
	})

	agent.processDomain(context.Background(), intel.ScrapeTask{Domain: "openai.com"})

	require.Equal(t, 1, headless.callCount())
	require.True(t, headless.lastRequest().UseHeadless)

	insights, err := store.InsightsForDomain(context.Background(), "openai.com", 10)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, 1, blobs.Len())
	require.Contains(t, producer.seenContent(), "OpenAI builds frontier models")
}

func TestProcessDomainCountsErrorAndBacksOff(t *testing.T) {
	t.Parallel()

	store := &failingStore{Store: memstore.New(), saveErr: errors.New("insert blew up")}
	seedDomain(t, store, "openai.com")
	fetcher := &stubFetcher{resp: intel.FetchResponse{StatusCode: 200, Body: richPage()}}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: goodInsight, Source: "gpt-4o"}}
	emitter := &stubEmitter{}

	agent := newTestAgent(t, Config{ErrorBackoff: time.Millisecond}, Deps{
		Store:    store,
		Probe:    fetcher,
		Producer: producer,
		Emitter:  emitter,
	})

	agent.processDomain(context.Background(), intel.ScrapeTask{Domain: "openai.com"})

	snap := agent.Snapshot()
	require.EqualValues(t, 1, snap.Errors)
	require.EqualValues(t, 0, snap.InsightsGenerated)
	require.Contains(t, emitter.stages(), progress.StageProcessError)
}

func TestRunProcessesSeededDomain(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seedDomain(t, store, "openai.com")
	fetcher := &stubFetcher{resp: intel.FetchResponse{StatusCode: 200, Body: richPage()}}
	producer := &stubProducer{gen: intel.GeneratedInsight{Content: goodInsight, Source: "gpt-4o"}}

	agent := newTestAgent(t, Config{Interval: 5 * time.Millisecond, Workers: 2}, Deps{
		Store:     store,
		Probe:     fetcher,
		Producer:  producer,
		Publisher: mempub.New(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- agent.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		insights, err := store.InsightsForDomain(context.Background(), "openai.com", 1)
		return err == nil && len(insights) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, intel.AgentStateStopped, agent.Snapshot().State)
}

func TestInsightIDFormat(t *testing.T) {
	t.Parallel()

	id := insightID("openai.com", time.Unix(1700000000, 0))
	require.Equal(t, "insight_1700000000_openai_com", id)
}

type stubFetcher struct {
	mu    sync.Mutex
	resp  intel.FetchResponse
	err   error
	calls int
	last  intel.FetchRequest
}

func (f *stubFetcher) Fetch(_ context.Context, req intel.FetchRequest) (intel.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return intel.FetchResponse{}, f.err
	}
	return f.resp, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *stubFetcher) lastRequest() intel.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type stubProducer struct {
	mu      sync.Mutex
	gen     intel.GeneratedInsight
	err     error
	calls   int
	content string
}

func (p *stubProducer) Produce(_ context.Context, _ string, content string) (intel.GeneratedInsight, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.content = content
	if p.err != nil {
		return intel.GeneratedInsight{}, p.err
	}
	return p.gen, nil
}

func (p *stubProducer) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProducer) seenContent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content
}

type stubEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *stubEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *stubEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

type stubIDs struct{}

func (stubIDs) NewID() (string, error) {
	return "run-test", nil
}

type failingStore struct {
	intel.Store
	saveErr error
}

func (s *failingStore) SaveInsight(ctx context.Context, insight intel.Insight) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.SaveInsight(ctx, insight)
}
