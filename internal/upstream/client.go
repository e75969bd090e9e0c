// Package upstream is the HTTP client for the market-data and security-scan
// providers. Every call goes through a rate limiter, a circuit breaker and a
// bounded retry loop with exponential backoff.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0

	// breaker trips after this many consecutive transient failures
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second

	maxErrorBody = 256
)

// Observer receives the outcome of every provider call.
type Observer func(op string, elapsed time.Duration, err error)

// Client talks to one provider base URL.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	observe     Observer
	logger      zerolog.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithAPIKey sends key in the X-API-Key header.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLimiter paces requests. Every attempt, including retries, waits on it.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(st gobreaker.Settings) ClientOption {
	return func(c *Client) {
		if st.IsSuccessful == nil {
			st.IsSuccessful = breakerSuccess
		}
		c.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

// WithObserver registers a callback for call latency and outcome.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observe = o
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a provider client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      zerolog.Nop(),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "upstream " + c.baseURL,
		Timeout: DefaultBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= DefaultBreakerFailures
		},
		IsSuccessful: breakerSuccess,
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// breakerSuccess counts provider rejections as successes: the provider is
// up, it just refused this request.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	return !IsDegradable(err)
}

// envelope is the provider response wrapper.
type envelope struct {
	Code json.RawMessage `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// providerCode normalizes the code field, which providers send either as a
// number or as a string. Empty and "0" mean success.
func (e envelope) providerCode() string {
	raw := strings.TrimSpace(string(e.Code))
	if raw == "" || raw == "null" {
		return ""
	}
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	if raw == "0" || raw == "" {
		return ""
	}
	return raw
}

// get performs a GET with breaker, pacing and retries, decoding data into out.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.getWithRetry(ctx, op, path, query, out)
	})
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Op: op, Err: err}
		}
	}
	if c.observe != nil {
		c.observe(op, time.Since(start), err)
	}
	return err
}

func (c *Client) getWithRetry(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr *FetchError

	for attempt := 0; attempt <= max(c.maxRetries, 0); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &FetchError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
			c.logger.Debug().Str("op", op).Int("attempt", attempt).Err(lastErr).Msg("retrying upstream call")
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &FetchError{Op: op, Err: err}
			}
		}

		lastErr = c.do(ctx, op, endpoint, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, op, endpoint string, out interface{}) *FetchError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Op: op, Message: "create request", Err: fmt.Errorf("%w: %v", errMalformed, err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Message: excerpt(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &FetchError{Op: op, Message: excerpt(body), Err: fmt.Errorf("%w: %v", errMalformed, err)}
	}
	if code := env.providerCode(); code != "" {
		return &FetchError{Op: op, Code: code, Message: env.Msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &FetchError{Op: op, Message: "decode data", Err: fmt.Errorf("%w: %v", errMalformed, err)}
	}
	return nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
