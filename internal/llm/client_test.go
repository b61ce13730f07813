package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, p Provider) *Client {
	t.Helper()
	client, err := NewClient(&Config{DefaultModel: "test-model", Timeout: time.Second}, p)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		client, err := NewClient(&Config{}, NewStubProvider(nil))
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, client.Model())
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	})

	t.Run("missing provider", func(t *testing.T) {
		_, err := NewClient(&Config{}, nil)
		assert.Error(t, err)
	})

	t.Run("negative timeout", func(t *testing.T) {
		_, err := NewClient(&Config{Timeout: -time.Second}, NewStubProvider(nil))
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{APIKey: "k"}).Validate())
}

func TestClient_Generate(t *testing.T) {
	stub := NewStubProvider(func(req ChatRequest) (string, error) {
		return "  \n A drafted section. \n\n", nil
	})
	client := newTestClient(t, stub)

	out, err := client.Generate(context.Background(), "framing", "write it", SectionParams)
	require.NoError(t, err)
	assert.Equal(t, "A drafted section.", out)

	require.Equal(t, 1, stub.Calls())
	req := stub.Requests()[0]
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "framing"},
		{Role: RoleUser, Content: "write it"},
	}, req.Messages)
}

func TestClient_GenerateShort(t *testing.T) {
	stub := NewStubProvider(func(req ChatRequest) (string, error) {
		return "Inner **markdown** kept", nil
	})
	client := newTestClient(t, stub)

	params := SuggestionParams
	params.Model = "other-model"
	out, err := client.GenerateShort(context.Background(), "suggest", params)
	require.NoError(t, err)
	assert.Equal(t, "Inner **markdown** kept", out)

	req := stub.Requests()[0]
	assert.Equal(t, "other-model", req.Model)
	assert.Equal(t, 300, req.MaxTokens)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "suggest"}}, req.Messages)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		respond  func(req ChatRequest) (string, error)
		sentinel error
	}{
		{
			name:     "empty completion",
			respond:  func(ChatRequest) (string, error) { return " \n\t ", nil },
			sentinel: ErrInvalidResponse,
		},
		{
			name: "status 429",
			respond: func(ChatRequest) (string, error) {
				return "", NewAPIError(http.StatusTooManyRequests, "slow down", nil)
			},
			sentinel: ErrRateLimited,
		},
		{
			name: "quota message",
			respond: func(ChatRequest) (string, error) {
				return "", errors.New("You exceeded your current Quota")
			},
			sentinel: ErrRateLimited,
		},
		{
			name: "server error",
			respond: func(ChatRequest) (string, error) {
				return "", NewAPIError(http.StatusBadGateway, "bad gateway", nil)
			},
			sentinel: ErrProviderUnavailable,
		},
		{
			name: "client error",
			respond: func(ChatRequest) (string, error) {
				return "", NewAPIError(http.StatusBadRequest, "bad request", nil)
			},
			sentinel: ErrProviderUnavailable,
		},
		{
			name: "network error",
			respond: func(ChatRequest) (string, error) {
				return "", errors.New("dial tcp: connection refused")
			},
			sentinel: ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, NewStubProvider(tt.respond))

			_, err := client.GenerateShort(context.Background(), "prompt", RefineParams)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			wrapped := fmt.Errorf("section executive_summary: %w", err)
			assert.ErrorIs(t, wrapped, tt.sentinel)

			var llmErr *Error
			require.ErrorAs(t, wrapped, &llmErr)
		})
	}
}

func TestClient_RateLimitedIsNotUnavailable(t *testing.T) {
	err := NewAPIError(http.StatusTooManyRequests, "limit", nil)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatusCode())
}

func TestClient_Timeout(t *testing.T) {
	stub := NewStubProvider(func(ChatRequest) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "too late", nil
	})
	blocking := &ctxProvider{inner: stub}

	client, err := NewClient(&Config{Timeout: 20 * time.Millisecond}, blocking)
	require.NoError(t, err)

	_, err = client.GenerateShort(context.Background(), "prompt", RefineParams)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestClient_IgnoresCallerCancellation(t *testing.T) {
	var sawCancel atomic.Bool
	stub := NewStubProvider(nil)
	p := &ctxProvider{inner: stub, observe: func(ctx context.Context) {
		sawCancel.Store(ctx.Err() != nil)
	}}
	client := newTestClient(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := client.GenerateShort(ctx, "prompt", RefineParams)
	require.NoError(t, err)
	assert.Equal(t, "Draft text for: prompt", out)
	assert.False(t, sawCancel.Load())
}

// ctxProvider returns early when its context ends, like a real HTTP call.
type ctxProvider struct {
	inner   Provider
	observe func(ctx context.Context)
}

func (p *ctxProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if p.observe != nil {
		p.observe(ctx)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := p.inner.Complete(ctx, req)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	original := NewInvalidResponseError("x")
	assert.Same(t, original, Classify(fmt.Errorf("wrap: %w", original)))

	timeout := Classify(fmt.Errorf("call: %w", context.DeadlineExceeded))
	assert.Equal(t, KindProviderUnavailable, timeout.Kind)
}

func chatServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	}
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		var seen map[string]any
		server := chatServer(t, func(w http.ResponseWriter, body map[string]any) {
			seen = body
			_ = json.NewEncoder(w).Encode(completion("  Our program serves 40 children.  "))
		})

		provider, err := NewOpenAIProvider(&Config{APIKey: "test-key", BaseURL: server.URL})
		require.NoError(t, err)
		client, err := NewClient(&Config{DefaultModel: "test-model"}, provider)
		require.NoError(t, err)

		out, err := client.Generate(context.Background(), "framing", "write", SectionParams)
		require.NoError(t, err)
		assert.Equal(t, "Our program serves 40 children.", out)

		assert.Equal(t, "test-model", seen["model"])
		assert.InDelta(t, 0.7, seen["temperature"], 0.0001)
		assert.InDelta(t, 1024, seen["max_tokens"], 0.0001)
		msgs, ok := seen["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	})

	statusTests := []struct {
		name     string
		status   int
		message  string
		sentinel error
	}{
		{"rate limited", http.StatusTooManyRequests, "Rate limit reached", ErrRateLimited},
		{"quota in body", http.StatusForbidden, "insufficient_quota", ErrRateLimited},
		{"server error", http.StatusInternalServerError, "boom", ErrProviderUnavailable},
		{"unauthorized", http.StatusUnauthorized, "bad key", ErrProviderUnavailable},
	}

	for _, tt := range statusTests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := chatServer(t, func(w http.ResponseWriter, _ map[string]any) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": tt.message, "type": "error"},
				})
			})

			provider, err := NewOpenAIProvider(&Config{APIKey: "test-key", BaseURL: server.URL})
			require.NoError(t, err)
			client, err := NewClient(&Config{DefaultModel: "test-model"}, provider)
			require.NoError(t, err)

			_, err = client.GenerateShort(context.Background(), "prompt", RefineParams)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, int32(1), calls.Load(), "provider errors are never retried")

			var llmErr *Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.status, llmErr.HTTPStatusCode())
		})
	}

	t.Run("empty choices", func(t *testing.T) {
		server := chatServer(t, func(w http.ResponseWriter, _ map[string]any) {
			resp := completion("")
			resp["choices"] = []any{}
			_ = json.NewEncoder(w).Encode(resp)
		})

		provider, err := NewOpenAIProvider(&Config{APIKey: "test-key", BaseURL: server.URL})
		require.NoError(t, err)
		client, err := NewClient(&Config{DefaultModel: "test-model"}, provider)
		require.NoError(t, err)

		_, err = client.GenerateShort(context.Background(), "prompt", RefineParams)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("requires api key", func(t *testing.T) {
		_, err := NewOpenAIProvider(&Config{})
		assert.Error(t, err)
	})
}

func TestGenkitProvider(t *testing.T) {
	stub := NewStubProvider(func(req ChatRequest) (string, error) {
		return "via genkit", nil
	})

	provider, err := NewGenkitProvider(context.Background(), stub, "fallback-model")
	require.NoError(t, err)

	client, err := NewClient(&Config{DefaultModel: "test-model"}, provider)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "framing", "write", SectionParams)
	require.NoError(t, err)
	assert.Equal(t, "via genkit", out)

	require.Equal(t, 1, stub.Calls())
	req := stub.Requests()[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "framing", req.Messages[0].Content)
	assert.Equal(t, RoleUser, req.Messages[1].Role)
	assert.Equal(t, "write", req.Messages[1].Content)

	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 1024, req.MaxTokens)
}

func TestGenkitProvider_ForwardsParams(t *testing.T) {
	stub := NewStubProvider(func(req ChatRequest) (string, error) {
		return "short", nil
	})
	provider, err := NewGenkitProvider(context.Background(), stub, "fallback-model")
	require.NoError(t, err)

	client, err := NewClient(&Config{DefaultModel: "test-model"}, provider)
	require.NoError(t, err)

	_, err = client.GenerateShort(context.Background(), "suggest", Params{Model: "other-model", Temperature: 0.8, MaxTokens: 300})
	require.NoError(t, err)

	req := stub.Requests()[0]
	assert.Equal(t, "other-model", req.Model)
	assert.Equal(t, 0.8, req.Temperature)
	assert.Equal(t, 300, req.MaxTokens)
}

func TestGenkitProvider_ErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		notWant error
	}{
		{"rate limited", NewRateLimitedError(429, "Too many requests: quota exceeded", nil), ErrRateLimited, ErrProviderUnavailable},
		{"unavailable", NewUnavailableError(503, "Service unavailable", nil), ErrProviderUnavailable, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := NewStubProvider(func(req ChatRequest) (string, error) {
				return "", tt.err
			})
			provider, err := NewGenkitProvider(context.Background(), stub, "fallback-model")
			require.NoError(t, err)

			client, err := NewClient(&Config{DefaultModel: "test-model"}, provider)
			require.NoError(t, err)

			_, err = client.Generate(context.Background(), "framing", "write", SectionParams)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, tt.notWant)
		})
	}
}
