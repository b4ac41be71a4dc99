package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client is an HTTP client with Bearer auth, base URL, rate limiting, and
// retry logic.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

// APIError represents a non-2xx HTTP response. It is treated as transient.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // internal: Retry-After header value
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// ProtocolError is a failure that retrying cannot fix: a malformed response
// body or an unrecoverable transport error.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RetryError is returned once the retry budget is spent.
type RetryError struct {
	Attempts int
	Err      error // last failure
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets how many times a failed call is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSleeper replaces the backoff sleep. Tests use it to record delays.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

const (
	DefaultMaxRetries = 5
	defaultRateLimit  = 10.0
	defaultRateBurst  = 5
)

// New creates a Client with Bearer auth and a base URL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst),
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON sends a GET request and unmarshals the JSON response into dest.
//
// Non-2xx responses, timeouts and body read failures are retried up to the
// retry budget with exponential backoff (1s, 2s, 4s, 8s, 16s); a larger
// Retry-After wins. A malformed body or a transport failure such as a refused
// connection returns *ProtocolError immediately. An exhausted budget returns
// *RetryError wrapping the last failure.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dest any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt, lastErr)
			slog.Warn("retrying request",
				"path", path,
				"attempt", attempt,
				"retries_left", c.maxRetries-attempt,
				"wait", wait,
				"error", lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err := c.do(ctx, fullURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !isTransient(err) {
				return err
			}
			lastErr = err
			continue
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return &ProtocolError{Op: "decode response", Err: err}
		}
		return nil
	}

	return &RetryError{Attempts: c.maxRetries + 1, Err: lastErr}
}

// do performs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &ProtocolError{Op: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, err
		}
		return nil, &ProtocolError{Op: "transport", Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 512 {
		bodyStr = bodyStr[:512]
	}
	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Body:       bodyStr,
		retryAfter: resp.Header.Get("Retry-After"),
	}
}

func isTransient(err error) bool {
	var protoErr *ProtocolError
	return !errors.As(err, &protoErr)
}

// backoffDelay returns the wait before retry number attempt (1-based).
func backoffDelay(attempt int, lastErr error) time.Duration {
	// Exponential backoff: 1s, 2s, 4s, 8s, 16s
	wait := time.Duration(1<<(attempt-1)) * time.Second

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.retryAfter != "" {
		if secs, err := strconv.Atoi(apiErr.retryAfter); err == nil && secs > 0 {
			if ra := time.Duration(secs) * time.Second; ra > wait {
				return ra
			}
		}
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
