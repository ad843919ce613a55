// Package progress defines the event structures emitted by the agent pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageProcessStart     Stage = "PROCESS_START"
	StageFetchDone        Stage = "FETCH_DONE"
	StageInsightPublished Stage = "INSIGHT_PUBLISHED"
	StageInsightRejected  Stage = "INSIGHT_REJECTED"
	StageContentUnchanged Stage = "CONTENT_UNCHANGED"
	StageProcessError     Stage = "PROCESS_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone while the agent processes a domain.
type Event struct {
	// RunID identifies the agent run that emitted the event.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which processing milestone occurred.
	Stage Stage
	// Domain names the domain being processed.
	Domain string
	// Model names the producer behind a published or rejected insight.
	Model string
	// Score carries the quality score for insight outcomes.
	Score float64
	// Bytes carries the response size for fetch completions.
	Bytes int64
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Dur captures fetch latency or total attempt wall time.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Domain == "" {
		return errors.New("domain is required")
	}
	switch e.Stage {
	case StageProcessStart, StageContentUnchanged, StageProcessError:
	case StageFetchDone:
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageInsightPublished, StageInsightRejected:
		if e.Model == "" {
			return errors.New("insight outcome requires model")
		}
		if e.Score < 0 || e.Score > 1 {
			return fmt.Errorf("quality score %v out of range", e.Score)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
