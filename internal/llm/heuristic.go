package llm

import (
	"context"
	"fmt"
	"strings"

	"llmrank/internal/intel"
)

// HeuristicSource labels insights written without any model call.
const HeuristicSource = "heuristic"

// HeuristicProducer writes a templated insight from content statistics.
// It never fails, which makes it the terminal link of a producer chain.
type HeuristicProducer struct{}

// NewHeuristic builds the fallback producer.
func NewHeuristic() *HeuristicProducer {
	return &HeuristicProducer{}
}

// Produce grades the content volume into a trust tier and renders the
// fallback insight template.
func (HeuristicProducer) Produce(_ context.Context, domain, content string) (intel.GeneratedInsight, error) {
	contentLength := len(content)
	wordCount := len(strings.Fields(content))

	var trustSignal string
	switch {
	case contentLength > 1000:
		trustSignal = "strong"
	case contentLength > 500:
		trustSignal = "moderate"
	default:
		trustSignal = "developing"
	}

	text := fmt.Sprintf(
		"%s shows %s trust signals with %d words of content. Their market presence indicates established positioning in their sector with clear value proposition.",
		domain, trustSignal, wordCount,
	)

	return intel.GeneratedInsight{Content: text, Source: HeuristicSource}, nil
}
