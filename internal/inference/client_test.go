package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newswatch/internal/intel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxRetries int) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL:     srv.URL,
		Model:       "llama3",
		Timeout:     2 * time.Second,
		MaxRetries:  maxRetries,
		BackoffUnit: time.Millisecond,
	}, nil)

	var mu sync.Mutex
	sleeps := []time.Duration{}
	c.sleep = func(d time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
	}
	return c, &sleeps
}

func TestGenerateSendsExpectedPayload(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"response": "generated text"}) //nolint:errcheck
	}, 0)

	text, err := c.Generate(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	require.Equal(t, "generated text", text)

	require.Equal(t, "llama3", got["model"])
	require.Equal(t, "user prompt", got["prompt"])
	require.Equal(t, "system prompt", got["system"])
	require.Equal(t, false, got["stream"])
	opts, ok := got["options"].(map[string]any)
	require.True(t, ok)
	require.InDelta(t, 0.1, opts["temperature"], 1e-9)
	require.InDelta(t, 0.9, opts["top_p"], 1e-9)
}

func TestGenerateRetriesServerErrorsWithBackoff(t *testing.T) {
	t.Parallel()

	calls := 0
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "third time lucky"}) //nolint:errcheck
	}, 2)

	text, err := c.Generate(context.Background(), "sys", "user")
	require.NoError(t, err)
	require.Equal(t, "third time lucky", text)
	require.Equal(t, 3, calls)
	// Backoff grows as 2^attempt units: 2 then 4.
	require.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond}, *sleeps)
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}, 3)

	_, err := c.Generate(context.Background(), "sys", "user")
	require.Error(t, err)

	var infErr *intel.InferenceError
	require.ErrorAs(t, err, &infErr)
	require.Equal(t, 1, infErr.Attempts)
	require.Equal(t, 1, calls)
	require.Empty(t, *sleeps)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 1)

	_, err := c.Generate(context.Background(), "sys", "user")
	var infErr *intel.InferenceError
	require.ErrorAs(t, err, &infErr)
	require.Equal(t, 2, infErr.Attempts)
	require.Equal(t, 2, calls)
}

func TestGenerateRejectsMalformedResponseBody(t *testing.T) {
	t.Parallel()

	c, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json at all")) //nolint:errcheck
	}, 2)

	_, err := c.Generate(context.Background(), "sys", "user")
	var infErr *intel.InferenceError
	require.ErrorAs(t, err, &infErr)
	require.Equal(t, 1, infErr.Attempts)
	require.Empty(t, *sleeps)
}

func TestHealthy(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"models": []any{}}) //nolint:errcheck
	}, 0)
	require.True(t, c.Healthy(context.Background()))

	down, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, 0)
	require.False(t, down.Healthy(context.Background()))
}

func TestHealthyUnreachableService(t *testing.T) {
	t.Parallel()

	c := New(Config{BaseURL: "http://127.0.0.1:1", Model: "llama3"}, nil)
	require.False(t, c.Healthy(context.Background()))
}
