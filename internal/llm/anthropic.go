package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llmrank/internal/intel"
	"llmrank/internal/telemetry"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// AnthropicConfig controls the secondary insight producer.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// AnthropicProducer generates insights through the Anthropic messages API.
// There is no official Go SDK, so this talks to the REST endpoint directly.
type AnthropicProducer struct {
	cfg        AnthropicConfig
	httpClient *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropic builds a producer. The model defaults to claude-3-5-sonnet.
func NewAnthropic(cfg AnthropicConfig) (*AnthropicProducer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &AnthropicProducer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Produce asks the messages API for a competitive insight about the domain.
func (p *AnthropicProducer) Produce(ctx context.Context, domain, content string) (intel.GeneratedInsight, error) {
	reqBody, err := json.Marshal(anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System:    analystSystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: analystUserPrompt(domain, content)},
		},
	})
	if err != nil {
		return intel.GeneratedInsight{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return intel.GeneratedInsight{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		telemetry.ObserveLLMRequest("anthropic", "error", time.Since(start))
		return intel.GeneratedInsight{}, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.ObserveLLMRequest("anthropic", "error", time.Since(start))
		return intel.GeneratedInsight{}, fmt.Errorf("read response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		telemetry.ObserveLLMRequest("anthropic", "error", time.Since(start))
		return intel.GeneratedInsight{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		telemetry.ObserveLLMRequest("anthropic", "error", time.Since(start))
		if parsed.Error != nil {
			return intel.GeneratedInsight{}, fmt.Errorf("anthropic returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return intel.GeneratedInsight{}, fmt.Errorf("anthropic returned %d", resp.StatusCode)
	}

	text := collectText(parsed)
	if text == "" {
		telemetry.ObserveLLMRequest("anthropic", "empty", time.Since(start))
		return intel.GeneratedInsight{}, errors.New("anthropic returned an empty insight")
	}
	telemetry.ObserveLLMRequest("anthropic", "ok", time.Since(start))

	return intel.GeneratedInsight{
		Content: text,
		Source:  p.cfg.Model,
	}, nil
}

func collectText(resp anthropicResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		b.WriteString(block.Text)
	}
	return strings.TrimSpace(b.String())
}
