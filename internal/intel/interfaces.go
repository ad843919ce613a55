package intel

import (
	"context"
	"time"
)

// Store persists domain records and insights.
type Store interface {
	// UpsertDomain inserts or fully refreshes one domain record.
	UpsertDomain(ctx context.Context, record DomainRecord) error
	// SeedDomains inserts the named domains if absent, returning the
	// number actually created.
	SeedDomains(ctx context.Context, records []DomainRecord) (int64, error)
	// Domain returns one record with its global rank populated.
	Domain(ctx context.Context, name string) (DomainRecord, error)
	// Domains lists records ordered by global rank.
	Domains(ctx context.Context, filter DomainFilter) ([]DomainRecord, error)
	// CountDomains reports the total number of domain records.
	CountDomains(ctx context.Context) (int, error)
	// SearchDomains returns every record whose name contains q
	// (case-insensitive), ordered by rank.
	SearchDomains(ctx context.Context, q string) ([]DomainRecord, error)
	// Categories aggregates per-category counts, averages, and top domains.
	Categories(ctx context.Context) ([]CategorySummary, error)
	// NextDomain returns the least recently processed domain.
	NextDomain(ctx context.Context) (DomainRecord, error)
	// MarkProcessed stamps the processing time and content hash.
	MarkProcessed(ctx context.Context, name, contentHash string, at time.Time) error
	// SaveInsight stores the insight and folds its quality into the
	// domain's cumulative score.
	SaveInsight(ctx context.Context, insight Insight) error
	// InsightsForDomain lists a domain's insights, newest first.
	InsightsForDomain(ctx context.Context, name string, limit int) ([]Insight, error)
	// PruneInsights deletes all but the newest keep insights.
	PruneInsights(ctx context.Context, keep int) (int64, error)
	// RefreshScores recomputes domain scores from surviving insights.
	RefreshScores(ctx context.Context) (int64, error)
	// Ping verifies connectivity to the backing database.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close()
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless refetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// InsightProducer turns fetched content into an insight draft.
type InsightProducer interface {
	Produce(ctx context.Context, domain, content string) (GeneratedInsight, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes insight events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for scrape tasks.
type Queue interface {
	Enqueue(ctx context.Context, task ScrapeTask) error
	Dequeue(ctx context.Context) (ScrapeTask, error)
}

// Hasher computes digests for change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces identifiers for requests and events.
type IDGenerator interface {
	NewID() (string, error)
}
