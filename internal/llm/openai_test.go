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

func TestNewOpenAIRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAI(OpenAIConfig{})
	require.Error(t, err)
}

func TestOpenAIProduce(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	var captured struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  openai.com holds a defensible position.  "}, "finish_reason": "stop"}]
		}`))
	}))
	t.Cleanup(srv.Close)

	producer, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	insight, err := producer.Produce(context.Background(), "openai.com", "model provider")
	require.NoError(t, err)
	require.Equal(t, "openai.com holds a defensible position.", insight.Content)
	require.Equal(t, "gpt-4o", insight.Source)

	require.Equal(t, "gpt-4o", captured.Model)
	require.Equal(t, 200, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	require.Equal(t, "system", captured.Messages[0].Role)
	require.Contains(t, captured.Messages[0].Content, "competitive intelligence analyst")
	require.Equal(t, "user", captured.Messages[1].Role)
	require.Contains(t, captured.Messages[1].Content, "Domain: openai.com")
	require.Contains(t, captured.Messages[1].Content, "Content: model provider")
}

func TestOpenAIProduceServerError(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	t.Cleanup(srv.Close)

	producer, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = producer.Produce(context.Background(), "openai.com", "content")
	require.Error(t, err)
}

func TestOpenAIProduceEmptyChoices(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-2", "object": "chat.completion", "choices": []}`))
	}))
	t.Cleanup(srv.Close)

	producer, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = producer.Produce(context.Background(), "openai.com", "content")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty insight")
}
