package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// HTTP implements Transport over net/http.
//
// Each HTTP value owns its own cookie jar, so a session created per scenario
// never observes cookies set for another scenario.
type HTTP struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	logger  *slog.Logger
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) Option {
	return func(h *HTTP) {
		h.headers[key] = value
	}
}

// WithTimeout bounds each request, independent of the context deadline.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTP) {
		h.client.Timeout = d
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HTTP) {
		h.logger = logger
	}
}

// WithRoundTripper replaces the underlying transport (used by tests).
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(h *HTTP) {
		h.client.Transport = rt
	}
}

// NewHTTP creates a transport rooted at baseURL.
func NewHTTP(baseURL string, opts ...Option) *HTTP {
	jar, _ := cookiejar.New(nil) // only fails with a non-nil PublicSuffixList
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Jar: jar},
		headers: map[string]string{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Get issues a GET request.
func (h *HTTP) Get(ctx context.Context, path string) (Outcome, error) {
	return h.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (h *HTTP) Post(ctx context.Context, path string, body any) (Outcome, error) {
	return h.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (h *HTTP) Put(ctx context.Context, path string, body any) (Outcome, error) {
	return h.do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE request.
func (h *HTTP) Delete(ctx context.Context, path string) (Outcome, error) {
	return h.do(ctx, http.MethodDelete, path, nil)
}

// Close releases idle connections held by the session.
func (h *HTTP) Close() {
	h.client.CloseIdleConnections()
}

func (h *HTTP) do(ctx context.Context, method, path string, body any) (Outcome, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read response body: %w", err)
	}

	out := NewOutcome(resp.StatusCode, data)
	out.Duration = time.Since(start)

	h.logger.Debug("http request completed",
		"method", method,
		"path", path,
		"status", out.Status,
		"duration_ms", out.Duration.Milliseconds(),
		"bytes", len(data),
	)
	return out, nil
}
