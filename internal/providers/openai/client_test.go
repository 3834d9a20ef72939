package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/biodoia/multiorch/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, path string, status int, body string) (*httptest.Server, *ChatCompletionRequest) {
	t.Helper()
	received := &ChatCompletionRequest{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(received)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, received
}

func TestClient_Complete(t *testing.T) {
	server, received := newTestServer(t, "/v1/chat/completions", http.StatusOK,
		`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"}}]}`)

	client := NewClient(ChatGPTConfig(server.URL, 5*time.Second))
	text, err := client.Complete(context.Background(), "gpt-4o-mini", "hello", "test-key")
	require.NoError(t, err)

	assert.Equal(t, "Hi there", text)
	assert.Equal(t, "gpt-4o-mini", received.Model)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
	assert.Equal(t, "hello", received.Messages[0].Content)
}

func TestClient_ContentParts(t *testing.T) {
	server, _ := newTestServer(t, "/chat/completions", http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}}]}`)

	client := NewClient(PerplexityConfig(server.URL, 5*time.Second))
	text, err := client.Complete(context.Background(), "sonar", "hello", "test-key")
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestClient_EmptyPlaceholder(t *testing.T) {
	server, _ := newTestServer(t, "/chat/completions", http.StatusOK, `{"choices":[]}`)

	client := NewClient(PerplexityConfig(server.URL, 5*time.Second))
	text, err := client.Complete(context.Background(), "sonar", "hello", "test-key")
	require.NoError(t, err)
	assert.Equal(t, "[Perplexity Empty]", text)
}

func TestClient_TerminalErrorVerbatim(t *testing.T) {
	server, _ := newTestServer(t, "/chat/completions", http.StatusUnauthorized,
		`{"error":{"message":"invalid key"}}`)

	client := NewClient(PerplexityConfig(server.URL, 5*time.Second))
	_, err := client.Complete(context.Background(), "sonar", "hello", "test-key")
	require.Error(t, err)

	var pe *providers.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, providers.KindTerminal, pe.Kind)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "invalid key", pe.Error())
}

func TestClient_ErrorWithoutMessage(t *testing.T) {
	server, _ := newTestServer(t, "/v1/chat/completions", http.StatusBadRequest, `{}`)

	client := NewClient(ChatGPTConfig(server.URL, 5*time.Second))
	_, err := client.Complete(context.Background(), "gpt-4o-mini", "hello", "test-key")
	require.Error(t, err)
	assert.Equal(t, "OpenAI error", err.Error())
	assert.True(t, errors.Is(err, providers.ErrTerminal))
}

func TestClient_TransientClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"invalid json", http.StatusOK, `<html>bad gateway</html>`},
		{"service unavailable", http.StatusServiceUnavailable, `{"error":{"message":"try later"}}`},
		{"overloaded status", 529, `{"error":{"message":"busy"}}`},
		{"overloaded type", http.StatusBadRequest, `{"error":{"message":"x","type":"overloaded_error"}}`},
		{"overloaded message", http.StatusTooManyRequests, `{"error":{"message":"The model is overloaded"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, "/v1/chat/completions", tt.status, tt.body)
			client := NewClient(ChatGPTConfig(server.URL, 5*time.Second))

			_, err := client.Complete(context.Background(), "gpt-4o-mini", "hello", "test-key")
			require.Error(t, err)
			assert.True(t, providers.IsTransient(err))
		})
	}
}

func TestClient_TransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(ChatGPTConfig(url, time.Second))
	_, err := client.Complete(context.Background(), "gpt-4o-mini", "hello", "test-key")
	require.Error(t, err)
	assert.True(t, providers.IsTransient(err))
}
