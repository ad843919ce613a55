package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"llmrank/internal/intel"
	"llmrank/internal/telemetry"
)

// OpenAIConfig controls the primary insight producer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// OpenAIProducer generates insights through the OpenAI chat API.
type OpenAIProducer struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI builds a producer. The model defaults to gpt-4o.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIProducer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIProducer{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

// Produce asks the chat API for a competitive insight about the domain.
func (p *OpenAIProducer) Produce(ctx context.Context, domain, content string) (intel.GeneratedInsight, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analystSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: analystUserPrompt(domain, content)},
		},
	})
	if err != nil {
		telemetry.ObserveLLMRequest("openai", "error", time.Since(start))
		return intel.GeneratedInsight{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		telemetry.ObserveLLMRequest("openai", "empty", time.Since(start))
		return intel.GeneratedInsight{}, errors.New("openai returned an empty insight")
	}
	telemetry.ObserveLLMRequest("openai", "ok", time.Since(start))

	return intel.GeneratedInsight{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Source:  p.cfg.Model,
	}, nil
}
