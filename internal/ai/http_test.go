package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

var fastRetry = Retry{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestOllamaProvider_Converse(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": "A goat on a hill"},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 11,
			"eval_count":        7,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	resp, err := p.Converse(context.Background(), goatRequest())
	require.NoError(t, err)

	assert.False(t, got.Stream)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, float32(0.5), got.Options.Temperature)
	assert.Equal(t, 200, got.Options.TopK)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, ollamaMsg{Role: "system", Content: "You are a chatbot"}, got.Messages[0])
	assert.Equal(t, ollamaMsg{Role: "user", Content: "Longer please"}, got.Messages[3])

	assert.Equal(t, textReply("assistant", "A goat on a hill"), resp.Message)
	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 7, TotalTokens: 18}, resp.Usage)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestOllamaProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	down := NewOllamaProvider(srv.URL, "llama3")
	down.Retry = fastRetry
	_, err := down.Converse(context.Background(), goatRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, chat.ErrParse)

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	_, err = NewOllamaProvider(garbage.URL, "llama3").Converse(context.Background(), goatRequest())
	assert.ErrorIs(t, err, chat.ErrParse)
}

func TestOpenRouterProvider_Converse(t *testing.T) {
	var got openRouterChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "chatbot", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"A goat on a hill"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
		}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL+"/", "k", "openai/gpt-4o-mini", "", "chatbot")
	resp, err := p.Converse(context.Background(), goatRequest())
	require.NoError(t, err)

	assert.Equal(t, float32(0.5), got.Temperature)
	assert.Equal(t, 200, got.TopK)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)

	assert.Equal(t, textReply("assistant", "A goat on a hill"), resp.Message)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, resp.Usage)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestOpenRouterProvider_Errors(t *testing.T) {
	_, err := NewOpenRouterProvider("", "", "m", "", "").Converse(context.Background(), goatRequest())
	assert.Error(t, err)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()
	_, err = NewOpenRouterProvider(empty.URL, "k", "m", "", "").Converse(context.Background(), goatRequest())
	assert.ErrorIs(t, err, chat.ErrParse)

	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer limited.Close()
	throttled := NewOpenRouterProvider(limited.URL, "k", "m", "", "")
	throttled.Retry = fastRetry
	_, err = throttled.Converse(context.Background(), goatRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFlattenText(t *testing.T) {
	assert.Equal(t, "a\nb", flattenText([]chat.InferenceContent{{Text: "a"}, {Text: "b"}}))
	assert.Equal(t, "", flattenText(nil))
}

// flakyServer answers failStatus for the first failures calls, then ok.
func flakyServer(t *testing.T, failures int32, failStatus int, ok string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failures {
			w.WriteHeader(failStatus)
			return
		}
		_, _ = w.Write([]byte(ok))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOllamaProvider_RetriesTransientFailures(t *testing.T) {
	srv, calls := flakyServer(t, 1, http.StatusServiceUnavailable,
		`{"message":{"role":"assistant","content":"A goat on a hill"},"done":true,"done_reason":"stop"}`)

	p := NewOllamaProvider(srv.URL, "llama3")
	p.Retry = fastRetry
	resp, err := p.Converse(context.Background(), goatRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, textReply("assistant", "A goat on a hill"), resp.Message)
}

func TestOllamaProvider_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := flakyServer(t, 100, http.StatusBadGateway, `{}`)

	p := NewOllamaProvider(srv.URL, "llama3")
	p.Retry = fastRetry
	_, err := p.Converse(context.Background(), goatRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaProvider_ClientErrorsAreNotRetried(t *testing.T) {
	srv, calls := flakyServer(t, 100, http.StatusBadRequest, `{}`)

	p := NewOllamaProvider(srv.URL, "llama3")
	p.Retry = fastRetry
	_, err := p.Converse(context.Background(), goatRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenRouterProvider_RetriesThrottling(t *testing.T) {
	srv, calls := flakyServer(t, 2, http.StatusTooManyRequests,
		`{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)

	p := NewOpenRouterProvider(srv.URL, "k", "m", "", "")
	p.Retry = fastRetry
	resp, err := p.Converse(context.Background(), goatRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "stop", resp.StopReason)
}

func TestRetry_TransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOllamaProvider(url, "llama3")
	p.Retry = fastRetry
	_, err := p.Converse(context.Background(), goatRequest())
	require.Error(t, err)

	c := NewClient("ollama", p, nil)
	conv, err := chat.FromHistory("s1", []chat.Message{chat.TextMessage(chat.RoleUser, "hi")})
	require.NoError(t, err)
	_, err = c.Converse(context.Background(), "", conv)
	assert.ErrorIs(t, err, chat.ErrInferenceUnavailable)
}
