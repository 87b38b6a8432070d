package embedding

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
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func writeEmbedding(w http.ResponseWriter, dim int) {
	vec := make([]float32, dim)
	vec[0] = 1
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  []map[string]interface{}{{"embedding": vec, "index": 0}},
		"model": "text-embedding-3-small",
	})
}

func TestOpenAIEmbedderSendsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"tomato egg"}, req.Input)
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, Dimension, req.Dimensions)

		writeEmbedding(w, Dimension)
	}))
	defer server.Close()

	e := NewOpenAIEmbedder("test-key", server.URL, "text-embedding-3-small")
	vec, err := e.Embed(context.Background(), "tomato egg")
	require.NoError(t, err)
	assert.Len(t, vec, Dimension)
	assert.Equal(t, float32(1), vec[0])
}

func TestOpenAIEmbedderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		writeEmbedding(w, Dimension)
	}))
	defer server.Close()

	e := NewOpenAIEmbedder("k", server.URL, "m")
	e.Retry = fastRetry()

	vec, err := e.Embed(context.Background(), "tomato egg")
	require.NoError(t, err)
	assert.Len(t, vec, Dimension)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOpenAIEmbedderFailures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCalls int32
		wantErr   string
	}{
		{
			name: "bad request is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "invalid model", http.StatusBadRequest)
			},
			wantCalls: 1,
			wantErr:   "status 400",
		},
		{
			name: "rate limit exhausts retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
			wantCalls: 3,
			wantErr:   "status 429",
		},
		{
			name: "wrong dimension",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEmbedding(w, 8)
			},
			wantCalls: 1,
			wantErr:   "8 dimensions",
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":[]}`))
			},
			wantCalls: 1,
			wantErr:   "no embeddings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			e := NewOpenAIEmbedder("k", server.URL, "m")
			e.Retry = fastRetry()

			_, err := e.Embed(context.Background(), "tomato egg")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestOpenAIEmbedderEmptyText(t *testing.T) {
	e := NewOpenAIEmbedder("k", "http://127.0.0.1:0", "m")
	_, err := e.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestOpenAIEmbedderStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewOpenAIEmbedder("k", server.URL, "m")
	e.Retry = fastRetry()
	_, err := e.Embed(ctx, "tomato egg")
	assert.ErrorIs(t, err, context.Canceled)
}
