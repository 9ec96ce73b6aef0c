package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantErr   error
		wantModel string
		wantURL   string
	}{
		{"missing key", Config{}, ErrDisabled, "", ""},
		{"blank key", Config{APIKey: "   "}, ErrDisabled, "", ""},
		{"defaults", Config{APIKey: "k"}, nil, DefaultModel, DefaultBaseURL},
		{"custom", Config{APIKey: "k", Model: " gpt-4.1-mini ", BaseURL: "https://example.test/v1/"}, nil, "gpt-4.1-mini", "https://example.test/v1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(tc.cfg)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, client.Enabled())
			assert.Equal(t, tc.wantModel, client.Model())
			assert.Equal(t, tc.wantURL, client.baseURL)
		})
	}
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var captured struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
		MaxTokens   int       `json:"max_tokens"`
	}
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"city":"Roma"}`)))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "secret", BaseURL: srv.URL, Model: "test-model", MaxTokens: 64})
	require.NoError(t, err)

	content, err := client.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{System("sys"), User("hello")},
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"city":"Roma"}`, content)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "/chat/completions", path)
	assert.Equal(t, "test-model", captured.Model)
	assert.InDelta(t, 0.1, captured.Temperature, 1e-9)
	assert.Equal(t, 64, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "hello", captured.Messages[1].Content)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "status error carries api message",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"invalid api key"}}`,
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
				assert.Equal(t, "invalid api key", statusErr.Message)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
		{
			name:   "blank content",
			status: http.StatusOK,
			body:   completionBody("   "),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
		{
			name:   "garbage body",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode response")
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = client.Complete(context.Background(), CompletionRequest{Messages: []Message{User("x")}})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestCompleteRetriesWhenConfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 2, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	content, err := client.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteSkipsRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNilClientIsDisabled(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())
	_, err := client.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrDisabled)
}
