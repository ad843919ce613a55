// Package telemetry exposes Prometheus collectors for the service.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	domainsProcessedTotal      *prometheus.CounterVec
	insightQualityScore        prometheus.Histogram
	agentQueueDepth            prometheus.Gauge
	agentActiveWorkers         prometheus.Gauge
	llmRequestsTotal           *prometheus.CounterVec
	llmRequestDurationSeconds  *prometheus.HistogramVec
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	headlessPromotionsTotal    prometheus.Counter
	robotsProbeFallbacksTotal  prometheus.Counter
	cacheLookupsTotal          *prometheus.CounterVec
	rateLimitRejectionsTotal   prometheus.Counter
	maintenanceRunsTotal       *prometheus.CounterVec
	maintenancePrunedTotal     prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrank_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmrank_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		domainsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrank_agent_domains_processed_total",
				Help: "Total number of agent processing attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		insightQualityScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "llmrank_insight_quality_score",
				Help:    "Distribution of quality scores across generated insights.",
				Buckets: []float64{0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 1},
			},
		)

		agentQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "llmrank_agent_queue_depth",
				Help: "Number of domains waiting in the agent queue.",
			},
		)

		agentActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "llmrank_agent_active_workers",
				Help: "Number of workers currently processing a domain.",
			},
		)

		llmRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrank_llm_requests_total",
				Help: "Total number of LLM completion calls, labeled by provider and status.",
			},
			[]string{"provider", "status"},
		)

		llmRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmrank_llm_request_duration_seconds",
				Help:    "Histogram of LLM completion latencies, labeled by provider.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		)

		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrank_fetch_total",
				Help: "Total number of content fetches, labeled by mode and status.",
			},
			[]string{"mode", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrank_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by mode.",
			},
			[]string{"mode"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmrank_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by mode.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"mode"},
		)

		headlessPromotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "llmrank_headless_promotions_total",
				Help: "Total number of fetches promoted to headless rendering.",
			},
		)

		robotsProbeFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "llmrank_robots_probe_fallbacks_total",
				Help: "Total number of robots.txt probes that fell back to allow-all after transient failures.",
			},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrank_cache_lookups_total",
				Help: "Total number of response cache lookups, labeled by route and result.",
			},
			[]string{"route", "result"},
		)

		rateLimitRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "llmrank_ratelimit_rejections_total",
				Help: "Total number of requests rejected by the rate limiter.",
			},
		)

		maintenanceRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmrank_maintenance_runs_total",
				Help: "Total number of maintenance runs, labeled by status.",
			},
			[]string{"status"},
		)

		maintenancePrunedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "llmrank_maintenance_pruned_insights_total",
				Help: "Total number of insights removed by retention pruning.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDomainProcessed increments the agent outcome counter.
// Outcomes: published, rejected, unchanged, error.
func ObserveDomainProcessed(outcome string) {
	domainsProcessedTotal.WithLabelValues(outcome).Inc()
}

// ObserveQualityScore records the quality score of a generated insight.
func ObserveQualityScore(score float64) {
	insightQualityScore.Observe(score)
}

// SetQueueDepth records the current agent queue backlog.
func SetQueueDepth(n int) {
	agentQueueDepth.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	agentActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	agentActiveWorkers.Dec()
}

// ObserveLLMRequest records a completion call against a provider.
func ObserveLLMRequest(provider, status string, duration time.Duration) {
	llmRequestsTotal.WithLabelValues(provider, status).Inc()
	llmRequestDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveFetch records a content fetch. Mode is "plain" or "headless".
func ObserveFetch(mode, status string, bytesFetched int, duration time.Duration) {
	fetchTotal.WithLabelValues(mode, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(mode).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveHeadlessPromotion increments the promotion counter.
func ObserveHeadlessPromotion() {
	headlessPromotionsTotal.Inc()
}

// ObserveRobotsProbeFallback increments the robots allow-all fallback counter.
func ObserveRobotsProbeFallback() {
	robotsProbeFallbacksTotal.Inc()
}

// ObserveCacheLookup records a response cache hit or miss.
func ObserveCacheLookup(route string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(route, result).Inc()
}

// ObserveRateLimitRejection increments the throttle rejection counter.
func ObserveRateLimitRejection() {
	rateLimitRejectionsTotal.Inc()
}

// ObserveMaintenanceRun records a maintenance run and how many
// insights it pruned.
func ObserveMaintenanceRun(status string, pruned int64) {
	maintenanceRunsTotal.WithLabelValues(status).Inc()
	if pruned > 0 {
		maintenancePrunedTotal.Add(float64(pruned))
	}
}
