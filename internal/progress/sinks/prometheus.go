package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"llmrank/internal/progress"
)

// PrometheusSink exports agent progress metrics via Prometheus. It owns all
// collectors for attempts started/completed/running and the per-stage event
// counter.
type PrometheusSink struct {
	eventsTotal       *prometheus.CounterVec
	attemptsStarted   prometheus.Counter
	attemptsCompleted *prometheus.CounterVec
	attemptsRunning   prometheus.Gauge
	attemptDuration   *prometheus.HistogramVec

	tracker *attemptTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmrank_progress_events_total",
			Help: "Progress events observed partitioned by stage.",
		}, []string{"stage"}),
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llmrank_progress_attempts_started_total",
			Help: "Total domain processing attempts that have started.",
		}),
		attemptsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmrank_progress_attempts_completed_total",
			Help: "Total domain processing attempts completed partitioned by outcome.",
		}, []string{"outcome"}),
		attemptsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmrank_progress_attempts_running",
			Help: "Current number of in-flight domain processing attempts.",
		}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmrank_progress_attempt_duration_seconds",
			Help:    "Wall time per completed processing attempt.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		tracker: newAttemptTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.eventsTotal,
		s.attemptsStarted,
		s.attemptsCompleted,
		s.attemptsRunning,
		s.attemptDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	s.eventsTotal.WithLabelValues(string(evt.Stage)).Inc()
	switch evt.Stage {
	case progress.StageProcessStart:
		s.attemptsStarted.Inc()
		if s.tracker.start(evt.Domain) {
			s.attemptsRunning.Inc()
		}
	case progress.StageInsightPublished:
		s.completeAttempt(evt, "published")
	case progress.StageInsightRejected:
		s.completeAttempt(evt, "rejected")
	case progress.StageContentUnchanged:
		s.completeAttempt(evt, "unchanged")
	case progress.StageProcessError:
		s.completeAttempt(evt, "error")
	}
}

func (s *PrometheusSink) completeAttempt(evt progress.Event, outcome string) {
	s.attemptsCompleted.WithLabelValues(outcome).Inc()
	if evt.Dur > 0 {
		s.attemptDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.Domain) {
		s.attemptsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type attemptTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newAttemptTracker() *attemptTracker {
	return &attemptTracker{running: make(map[string]struct{})}
}

func (t *attemptTracker) start(domain string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[domain]; ok {
		return false
	}
	t.running[domain] = struct{}{}
	return true
}

func (t *attemptTracker) complete(domain string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[domain]; !ok {
		return false
	}
	delete(t.running, domain)
	return true
}
