package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"llmrank/internal/telemetry"
)

func TestNewAnthropicRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewAnthropic(AnthropicConfig{})
	require.Error(t, err)
}

func TestAnthropicProduce(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "anthropic.com publishes extensive "},
				{"type": "text", "text": "safety research."}
			]
		}`))
	}))
	t.Cleanup(srv.Close)

	producer, err := NewAnthropic(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	insight, err := producer.Produce(context.Background(), "anthropic.com", "safety lab")
	require.NoError(t, err)
	require.Equal(t, "anthropic.com publishes extensive safety research.", insight.Content)
	require.Equal(t, "claude-3-5-sonnet-20241022", insight.Source)

	require.Equal(t, "claude-3-5-sonnet-20241022", captured.Model)
	require.Equal(t, 300, captured.MaxTokens)
	require.Contains(t, captured.System, "competitive intelligence analyst")
	require.Len(t, captured.Messages, 1)
	require.Equal(t, "user", captured.Messages[0].Role)
	require.Contains(t, captured.Messages[0].Content, "Domain: anthropic.com")
}

func TestAnthropicProduceAPIError(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	t.Cleanup(srv.Close)

	producer, err := NewAnthropic(AnthropicConfig{APIKey: "bad-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = producer.Produce(context.Background(), "anthropic.com", "content")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid x-api-key")
}

func TestAnthropicProduceEmptyContent(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": []}`))
	}))
	t.Cleanup(srv.Close)

	producer, err := NewAnthropic(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = producer.Produce(context.Background(), "anthropic.com", "content")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty insight")
}
