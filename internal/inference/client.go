// Package inference implements the HTTP client for the LLM service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"newswatch/internal/intel"
	"newswatch/internal/metrics"
)

// Decoding parameters are pinned low to bias the model toward
// deterministic, schema-conformant output.
const (
	defaultTemperature = 0.1
	defaultTopP        = 0.9

	healthTimeout = 5 * time.Second
)

// Config controls client behavior. MaxRetries counts extra attempts
// beyond the first; BackoffUnit scales the 2^attempt sleep and exists so
// tests do not wait wall-clock seconds.
type Config struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	BackoffUnit time.Duration
}

// Client talks to an Ollama-style inference service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	sleep      func(time.Duration)
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		sleep:      time.Sleep,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// statusError marks an HTTP-level failure so the retry loop can separate
// server-side (retryable) from client-side (terminal) classes.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("inference service returned status %d", e.code)
}

// Generate sends one logical prompt and returns the raw generated text.
// Timeouts and 5xx responses are retried up to the configured ceiling
// with exponential backoff (2^attempt units); other failures propagate
// immediately. Exhaustion yields an intel.InferenceError carrying the
// attempt count.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	attempts := 0
	for {
		attempts++
		text, err := c.generateOnce(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}

		if !retryable(err) || attempts > c.cfg.MaxRetries {
			return "", &intel.InferenceError{Attempts: attempts, Err: err}
		}

		backoff := time.Duration(1<<uint(attempts)) * c.cfg.BackoffUnit
		c.logger.Warn("inference attempt failed, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		c.sleep(backoff)
	}
}

func (c *Client) generateOnce(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: userPrompt,
		System: systemPrompt,
		Stream: false,
		Options: generateOptions{
			Temperature: defaultTemperature,
			TopP:        defaultTopP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordInference("error", time.Since(start))
		return "", fmt.Errorf("send generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordInference("error", time.Since(start))
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return "", &statusError{code: resp.StatusCode}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RecordInference("error", time.Since(start))
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	metrics.RecordInference("success", time.Since(start))

	if out.Response == "" {
		return "", errors.New("inference service returned an empty response")
	}
	return out.Response, nil
}

// retryable reports whether the failure class warrants another attempt:
// request timeouts and server-side errors qualify, everything else
// (client-side status, malformed payload) is terminal.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Timeout()
	}
	return false
}

// Healthy probes the models-listing endpoint with a short fixed timeout.
// It returns false on any error and never panics.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	return resp.StatusCode == http.StatusOK
}
