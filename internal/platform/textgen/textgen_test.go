package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/retry"
)

func TestOpenAIGenerateSendsSystemAndUserMessages(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  ['韓系']  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, DefaultModel: "gpt-4o-mini"})
	out, err := gen.Generate(context.Background(), Request{System: "sys", Prompt: "hello", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "['韓系']", out)
	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
}

func TestOpenAIClientErrorsArePermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := gen.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.False(t, retry.IsRetryable(err))
}

func TestGuardedTripsBreakerAfterRepeatedFailures(t *testing.T) {
	calls := 0
	failing := Func(func(context.Context, Request) (string, error) {
		calls++
		return "", errors.New("upstream down")
	})
	g := NewGuarded(logger.Nop(), Config{Provider: "openai", BreakerMinRequests: 2, BreakerFailRatio: 0.5, BreakerTimeout: time.Minute}, failing, nil)

	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), Request{Prompt: "p"})
		require.Error(t, err)
	}
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
}

func TestGuardedAppliesTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := NewGuarded(logger.Nop(), Config{Timeout: 20 * time.Millisecond}, slow, nil)
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
