package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com/v10", "test-token")

		assert.Equal(t, "https://api.example.com/v10", c.baseURL)
		assert.Equal(t, "test-token", c.token)
		assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
		assert.Equal(t, 3, c.maxRetries)
		assert.Equal(t, time.Second, c.retryBackoff)
		assert.NotNil(t, c.logger)
		assert.True(t, strings.HasPrefix(c.userAgent, "DiscordBot"))
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com", "key",
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
			WithUserAgent("custom"),
		)
		assert.Equal(t, 15*time.Second, c.httpClient.Timeout)
		assert.Equal(t, 10, c.maxRetries)
		assert.Equal(t, 500*time.Millisecond, c.retryBackoff)
		assert.Same(t, logger, c.logger)
		assert.Equal(t, "custom", c.userAgent)
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://api.example.com", "", WithHTTPClient(customClient))
		assert.Same(t, customClient, c.httpClient)
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Not Found"}
	assert.Equal(t, "discord api error 404: Not Found", err.Error())

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{502, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		assert.Equal(t, tt.expected, err.IsRetryable(), "status %d", tt.code)
	}

	assert.True(t, errors.Is(&APIError{StatusCode: 401}, ErrUnauthorized))
	assert.False(t, errors.Is(&APIError{StatusCode: 403}, ErrUnauthorized))
}

func TestDoRequest(t *testing.T) {
	t.Run("sets bot authorization", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bot test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-token")
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, `{"status": "ok"}`, string(body))
	})

	t.Run("429 carries retry after", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "1.5")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 1500*time.Millisecond, apiErr.RetryAfter)
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.doRequest(ctx, http.MethodGet, "/test", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDoWithRetry(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, `{"ok": true}`, string(body))
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("unauthorized is not retried", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := NewClient(server.URL, "bad", WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(2, 5*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exceeded")
		assert.Equal(t, int32(3), attempts.Load())
	})
}

func TestGetGatewayInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gateway/bot", r.URL.Path)
		w.Write([]byte(`{
			"url": "wss://gateway.discord.gg",
			"shards": 4,
			"session_start_limit": {"total": 1000, "remaining": 998, "reset_after": 14400000, "max_concurrency": 0}
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "key")
	info, err := c.GetGatewayInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "wss://gateway.discord.gg", info.URL)
	assert.Equal(t, 4, info.Shards)
	assert.Equal(t, 998, info.SessionStartLimit.Remaining)
	assert.Equal(t, 4*time.Hour, info.SessionStartLimit.ResetIn())
	assert.Equal(t, 1, info.SessionStartLimit.MaxConcurrency, "zero concurrency is clamped")
}
