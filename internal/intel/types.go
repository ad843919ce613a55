package intel

import (
	"net/http"
	"time"
)

// InsightTypeCompetitiveAnalysis is the insight_type recorded for every
// insight produced by the ingestion pipeline.
const InsightTypeCompetitiveAnalysis = "competitive_analysis"

// DomainRecord is the stored representation of one analyzed domain.
// Score is on a 0-100 scale: the cumulative mean of published insight
// quality scores multiplied by 100.
type DomainRecord struct {
	Domain          string     `json:"domain"`
	Category        string     `json:"category"`
	Score           float64    `json:"score"`
	InsightsCount   int        `json:"insights_count"`
	ContentHash     string     `json:"content_hash,omitempty"`
	Rank            int        `json:"rank,omitempty"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Insight is one generated, quality-gated analysis of a domain.
type Insight struct {
	ID                  string    `json:"id"`
	Domain              string    `json:"domain"`
	Category            string    `json:"category"`
	Type                string    `json:"type"`
	Content             string    `json:"content"`
	QualityScore        float64   `json:"quality_score"`
	SourceModel         string    `json:"source_model"`
	SourceContentLength int       `json:"source_content_length"`
	SnapshotURI         string    `json:"snapshot_uri,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// CategorySummary aggregates domains sharing one category label.
type CategorySummary struct {
	Category    string   `json:"category"`
	DomainCount int      `json:"domain_count"`
	AvgScore    float64  `json:"avg_score"`
	TopDomains  []string `json:"top_domains"`
}

// DomainFilter narrows Domains listings. A zero Limit means the store
// default; Category matches case-insensitively when non-empty.
type DomainFilter struct {
	Category string
	Limit    int
}

// ScrapeTask is one unit of agent work: analyze a single domain.
type ScrapeTask struct {
	Domain     string
	Attempt    int
	EnqueuedAt time.Time
}

// FetchRequest captures everything needed to fetch a page.
// RespectRobots only takes effect when RespectRobotsProvided is set;
// otherwise the fetcher falls back to its configured default.
type FetchRequest struct {
	URL                   string
	Headers               http.Header
	UseHeadless           bool
	RespectRobots         bool
	RespectRobotsProvided bool
}

// RobotsStatus reports how the robots.txt probe for a fetch concluded.
type RobotsStatus string

// Robots probe outcomes.
const (
	// RobotsStatusUnknown means no probe ran or it completed normally.
	RobotsStatusUnknown RobotsStatus = ""
	// RobotsStatusIndeterminate means the probe kept failing transiently
	// and the fetch proceeded under a synthetic allow-all policy.
	RobotsStatusIndeterminate RobotsStatus = "indeterminate"
)

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
	RobotsStatus RobotsStatus
	RobotsReason string
}

// GeneratedInsight is the raw output of an insight producer before
// scoring and gating.
type GeneratedInsight struct {
	Content string
	Source  string
}

// InsightEvent is published to the event topic for every insight that
// clears the quality gate.
type InsightEvent struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	Category     string    `json:"category"`
	QualityScore float64   `json:"quality_score"`
	SourceModel  string    `json:"source_model"`
	SnapshotURI  string    `json:"snapshot_uri,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AgentState is the coarse lifecycle state reported by the agent.
type AgentState string

// Agent states surfaced through the health endpoint.
const (
	AgentStateProcessing AgentState = "processing"
	AgentStateStopped    AgentState = "stopped"
	AgentStateDisabled   AgentState = "disabled"
)

// AgentSnapshot is a point-in-time view of agent throughput counters.
type AgentSnapshot struct {
	State             AgentState `json:"status"`
	StartedAt         time.Time  `json:"started_at,omitempty"`
	DomainsProcessed  int64      `json:"domains_processed"`
	InsightsGenerated int64      `json:"insights_generated"`
	InsightsRejected  int64      `json:"insights_rejected"`
	ContentUnchanged  int64      `json:"content_unchanged"`
	Errors            int64      `json:"errors"`
	SuccessRate       float64    `json:"success_rate"`
	QualityThreshold  float64    `json:"quality_threshold"`
	TargetPerHour     int        `json:"target_per_hour"`
	LastDomain        string     `json:"last_domain,omitempty"`
	LastProcessedAt   time.Time  `json:"last_processed_at,omitempty"`
}
