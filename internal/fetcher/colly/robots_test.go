package collyfetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"llmrank/internal/intel"
	"llmrank/internal/telemetry"
)

func TestRobotsRetryReturnsAllowAllOnTimeout(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	state := newRobotsProbeState()
	base := &stubRoundTripper{
		results: []roundTripResult{
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
		},
	}
	transport := &robotsAwareTransport{
		base:  base,
		state: state,
	}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/robots.txt", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	t.Cleanup(func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.Fatalf("resp close: %v", cerr)
		}
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "User-agent: *\nAllow: /" {
		t.Fatalf("unexpected fallback body: %q", string(body))
	}
	if state.status != intel.RobotsStatusIndeterminate {
		t.Fatalf("expected robots status to be indeterminate, got %q", state.status)
	}
	if state.reason != robotsFallbackReasonTLSHandshake {
		t.Fatalf("expected reason %q, got %q", robotsFallbackReasonTLSHandshake, state.reason)
	}
	if base.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", base.calls)
	}
}

func TestRobotsRetryStopsAfterSuccess(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	state := newRobotsProbeState()
	base := &stubRoundTripper{
		results: []roundTripResult{
			{err: context.DeadlineExceeded},
			{resp: httptest.NewRecorder().Result()},
		},
	}

	transport := &robotsAwareTransport{
		base:  base,
		state: state,
	}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/robots.txt", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	if cerr := resp.Body.Close(); cerr != nil {
		t.Fatalf("resp close: %v", cerr)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", base.calls)
	}
	if state.status != intel.RobotsStatusUnknown {
		t.Fatalf("expected robots status to remain unknown, got %q", state.status)
	}
}

func TestRobotsTransportIgnoresOtherPaths(t *testing.T) {
	t.Parallel()

	state := newRobotsProbeState()
	base := &stubRoundTripper{
		results: []roundTripResult{
			{resp: httptest.NewRecorder().Result()},
		},
	}
	transport := &robotsAwareTransport{
		base:  base,
		state: state,
	}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/index.html", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	if cerr := resp.Body.Close(); cerr != nil {
		t.Fatalf("resp close: %v", cerr)
	}
	if base.calls != 1 {
		t.Fatalf("expected a single pass-through attempt, got %d", base.calls)
	}
}

func TestProbeStateApplySetsResponseFields(t *testing.T) {
	t.Parallel()

	state := newRobotsProbeState()
	state.status = intel.RobotsStatusIndeterminate
	state.reason = robotsFallbackReasonTLSHandshake

	var resp intel.FetchResponse
	state.apply(&resp)
	if resp.RobotsStatus != intel.RobotsStatusIndeterminate {
		t.Fatalf("expected indeterminate status, got %q", resp.RobotsStatus)
	}
	if resp.RobotsReason != robotsFallbackReasonTLSHandshake {
		t.Fatalf("unexpected reason %q", resp.RobotsReason)
	}
}

type roundTripResult struct {
	resp *http.Response
	err  error
}

type stubRoundTripper struct {
	results []roundTripResult
	calls   int
}

func (s *stubRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	defer func() { s.calls++ }()
	if len(s.results) == 0 {
		return nil, context.DeadlineExceeded
	}
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	res := s.results[idx]
	return res.resp, res.err
}
