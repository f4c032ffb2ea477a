// Package providers implements thin typed clients for the upstream data
// providers: the smart-money analytics API and the perpetuals exchange info
// API. Clients validate payloads at the boundary and map them into domain
// records; scoring code never sees raw provider JSON.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Default client policy. Overridable per client via options.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultCallTimeout = 10 * time.Second
	DefaultRatePerSec  = 5
)

// ErrSourceUnavailable marks a source that stayed down through all retry
// attempts. The aggregator maps it onto its cache/stale/synthetic ladder.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrMissingCredential is returned when a provider requiring an API key was
// constructed without one. Surfaces per-request, never crashes the process.
var ErrMissingCredential = errors.New("missing provider credential")

// Recorder receives call outcomes. Satisfied by observability.Metrics.
type Recorder interface {
	RecordProviderRequest(provider, outcome string, seconds float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderRequest(string, string, float64) {}

// httpClient is the retrying, rate-limited transport shared by both
// provider clients.
type httpClient struct {
	name        string
	baseURL     string
	apiKey      string
	client      *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	callTimeout time.Duration
	recorder    Recorder
	logger      *log.Logger
}

// Option configures a provider client.
type Option func(*httpClient)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpClient) {
		h.client = c
	}
}

// WithMaxAttempts sets total attempts per call (first try included).
func WithMaxAttempts(n int) Option {
	return func(h *httpClient) {
		h.maxAttempts = n
	}
}

// WithBaseDelay sets the initial backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(h *httpClient) {
		h.baseDelay = d
	}
}

// WithCallTimeout sets the hard per-attempt timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(h *httpClient) {
		h.callTimeout = d
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSec float64) Option {
	return func(h *httpClient) {
		if perSec > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithRecorder wires call metrics.
func WithRecorder(r Recorder) Option {
	return func(h *httpClient) {
		if r != nil {
			h.recorder = r
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(h *httpClient) {
		if l != nil {
			h.logger = l
		}
	}
}

func newHTTPClient(name, baseURL, apiKey string, opts ...Option) *httpClient {
	h := &httpClient{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		client:      &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		callTimeout: DefaultCallTimeout,
		recorder:    nopRecorder{},
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// transientError wraps failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// do performs one API call with bounded exponential-backoff retry and a
// hard per-attempt timeout enforced via context cancellation. The decoded
// JSON body lands in out.
func (h *httpClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = h.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.2
	policy.MaxInterval = 30 * time.Second

	started := time.Now()
	attempts := 0

	operation := func() error {
		attempts++
		err := h.attempt(ctx, method, path, query, payload, out)
		if err == nil {
			return nil
		}
		var te *transientError
		if errors.As(err, &te) {
			h.logger.Printf("[%s] attempt %d/%d failed: %v", h.name, attempts, h.maxAttempts, err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(h.maxAttempts-1)), ctx))

	elapsed := time.Since(started).Seconds()
	if err != nil {
		h.recorder.RecordProviderRequest(h.name, "error", elapsed)
		var te *transientError
		if errors.As(err, &te) {
			return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, h.name, te.err)
		}
		return err
	}
	h.recorder.RecordProviderRequest(h.name, "ok", elapsed)
	return nil
}

// attempt performs a single HTTP round trip.
func (h *httpClient) attempt(ctx context.Context, method, path string, query url.Values, payload []byte, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	if err := h.limiter.Wait(callCtx); err != nil {
		return &transientError{err: fmt.Errorf("rate limiter: %w", err)}
	}

	endpoint := h.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(callCtx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.apiKey != "" {
		req.Header.Set("apiKey", h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return &transientError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transientError{err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &transientError{err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		// 4xx other than 429 will not improve on retry.
		return fmt.Errorf("%s: unexpected status %d: %s", h.name, resp.StatusCode, truncate(respBody, 200))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", h.name, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
