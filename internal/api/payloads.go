package api

import (
	"math"
	"time"

	"llmrank/internal/intel"
)

// Service identity reported by the root and health endpoints.
const (
	serviceName    = "LLMRank.io Unified API"
	serviceVersion = "3.0"
)

const (
	defaultDomainLimit = 500
	maxDomainLimit     = 1000
	maxSearchResults   = 20
	recentInsightLimit = 10
)

// domainPayload is the serving shape of one domain: the stored record
// plus the derived presentation fields.
type domainPayload struct {
	Domain           string    `json:"domain"`
	Rank             int       `json:"rank"`
	Score            float64   `json:"score"`
	Category         string    `json:"category"`
	InsightsCount    int       `json:"insights_count"`
	LastUpdated      time.Time `json:"last_updated"`
	CompetitiveScore float64   `json:"competitive_score"`
	MarketPosition   string    `json:"market_position"`
	ThreatLevel      string    `json:"threat_level"`
}

func newDomainPayload(record intel.DomainRecord) domainPayload {
	return domainPayload{
		Domain:           record.Domain,
		Rank:             record.Rank,
		Score:            record.Score,
		Category:         record.Category,
		InsightsCount:    record.InsightsCount,
		LastUpdated:      record.UpdatedAt,
		CompetitiveScore: intel.CompetitiveScore(record.Score),
		MarketPosition:   intel.MarketPosition(record.Score),
		ThreatLevel:      intel.ThreatLevel(record.Score),
	}
}

func newDomainPayloads(records []intel.DomainRecord) []domainPayload {
	out := make([]domainPayload, len(records))
	for i, record := range records {
		out[i] = newDomainPayload(record)
	}
	return out
}

type domainsResponse struct {
	TotalDomains   int             `json:"total_domains"`
	Limit          int             `json:"limit"`
	CategoryFilter string          `json:"category_filter,omitempty"`
	Domains        []domainPayload `json:"domains"`
}

type insightPayload struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	QualityScore float64   `json:"quality_score"`
	Type         string    `json:"type"`
	SourceModel  string    `json:"source_model"`
	CreatedAt    time.Time `json:"created_at"`
}

func newInsightPayloads(insights []intel.Insight) []insightPayload {
	out := make([]insightPayload, len(insights))
	for i, insight := range insights {
		out[i] = insightPayload{
			ID:           insight.ID,
			Content:      insight.Content,
			QualityScore: insight.QualityScore,
			Type:         insight.Type,
			SourceModel:  insight.SourceModel,
			CreatedAt:    insight.CreatedAt,
		}
	}
	return out
}

type domainDetailResponse struct {
	domainPayload
	RecentInsights         []insightPayload `json:"recent_insights"`
	TotalInsightsAvailable int              `json:"total_insights_available"`
}

type categoryPayload struct {
	Category    string   `json:"category"`
	DomainCount int      `json:"domain_count"`
	AvgScore    float64  `json:"avg_score"`
	TopDomains  []string `json:"top_domains"`
}

func newCategoryPayloads(summaries []intel.CategorySummary) []categoryPayload {
	out := make([]categoryPayload, len(summaries))
	for i, summary := range summaries {
		out[i] = categoryPayload{
			Category:    summary.Category,
			DomainCount: summary.DomainCount,
			AvgScore:    math.Round(summary.AvgScore*10) / 10,
			TopDomains:  summary.TopDomains,
		}
	}
	return out
}

type searchResponse struct {
	Query      string          `json:"query"`
	Results    []domainPayload `json:"results"`
	TotalCount int             `json:"total_count"`
	HasMore    bool            `json:"has_more"`
}

type healthResponse struct {
	Status                string    `json:"status"`
	Timestamp             time.Time `json:"timestamp"`
	TotalDomainsAvailable int       `json:"total_domains_available"`
	DatabaseConnection    string    `json:"database_connection"`
	AgentStatus           string    `json:"agent_status"`
	Version               string    `json:"version"`
}

type rootResponse struct {
	Service        string            `json:"service"`
	Version        string            `json:"version"`
	Status         string            `json:"status"`
	Endpoints      map[string]string `json:"endpoints"`
	Authentication string            `json:"authentication"`
}
