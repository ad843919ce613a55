package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"llmrank/internal/intel"
)

// Chain tries each producer in order until one returns an insight.
type Chain struct {
	logger    *zap.Logger
	producers []intel.InsightProducer
}

// NewChain builds a producer chain. Producers are consulted in the order
// given, so the cheapest reliable fallback belongs last.
func NewChain(logger *zap.Logger, producers ...intel.InsightProducer) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{logger: logger, producers: producers}
}

// Produce returns the first successful insight from the chain.
func (c *Chain) Produce(ctx context.Context, domain, content string) (intel.GeneratedInsight, error) {
	if len(c.producers) == 0 {
		return intel.GeneratedInsight{}, errors.New("no insight producers configured")
	}

	var lastErr error
	for _, producer := range c.producers {
		insight, err := producer.Produce(ctx, domain, content)
		if err == nil {
			return insight, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return intel.GeneratedInsight{}, fmt.Errorf("producer chain canceled: %w", ctx.Err())
		}
		c.logger.Warn("insight producer failed, trying next",
			zap.String("domain", domain),
			zap.Error(err),
		)
	}
	return intel.GeneratedInsight{}, fmt.Errorf("all insight producers failed: %w", lastErr)
}
