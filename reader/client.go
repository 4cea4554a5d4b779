// Package reader holds the HTTP plumbing shared by the data source clients.
// Every request is rate limited, guarded by a circuit breaker and bounded by
// a timeout. Failures come back classified as models.TransientError or
// models.ParseError. Nothing is retried.
package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"trustclaw/internal/metrics"
	"trustclaw/logger"
	"trustclaw/models"
)

const (
	DefaultUserAgent = "trustclaw/1.0 (+https://github.com/trustclaw)"
	maxBodyBytes     = 8 << 20
)

type ClientOptions struct {
	Timeout           time.Duration
	RequestsPerMinute int
	Burst             int
	UserAgent         string
	BreakerFailures   uint32
	BreakerCooldown   time.Duration
	// Transport overrides the base round tripper, mostly for tests.
	Transport http.RoundTripper
}

func (o *ClientOptions) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.RequestsPerMinute <= 0 {
		o.RequestsPerMinute = 60
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 5
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 60 * time.Second
	}
	if o.Transport == nil {
		o.Transport = http.DefaultTransport
	}
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// Client is an HTTP client for one upstream source.
type Client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logger.Entry
}

func NewClient(name string, opts ClientOptions) *Client {
	opts.setDefaults()
	log := logger.GetLogger().WithComponent("reader." + name)

	st := gobreaker.Settings{
		Name:    name,
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logger.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	}

	return &Client{
		name: name,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: userAgentTransport{agent: opts.UserAgent, base: opts.Transport},
		},
		limiter: rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

func (c *Client) Name() string { return c.name }

// HTTPClient exposes the underlying client for SDKs that take one.
func (c *Client) HTTPClient() *http.Client { return c.http }

// GetJSON fetches rawURL with query and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out interface{}) error {
	body, err := c.GetBody(ctx, rawURL, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.SourceError(c.name, "parse")
		return models.NewParse(c.name, fmt.Errorf("decode %s: %w", rawURL, err))
	}
	return nil
}

// GetBody fetches rawURL and returns the raw body of a 2xx response.
func (c *Client) GetBody(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.NewTransient(c.name, fmt.Errorf("rate limiter: %w", err))
	}

	u := rawURL
	if len(query) > 0 {
		u = rawURL + "?" + query.Encode()
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = models.NewTransient(c.name, err)
		}
		metrics.SourceError(c.name, errorKind(err))
		return nil, err
	}

	c.log.WithFields(logger.Fields{
		"url":         rawURL,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("fetched")
	return res.([]byte), nil
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.NewTransient(c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, models.NewTransient(c.name, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		// 4xx other than 429 will not fix itself, but it is still only this
		// cycle's problem.
		return nil, models.NewTransient(c.name, &StatusError{Code: resp.StatusCode, Body: snippet})
	}
	return body, nil
}

// tripsBreaker is true for upstream trouble: network failures, timeouts,
// 429 and 5xx. Client errors and bad payloads leave the breaker alone.
func tripsBreaker(err error) bool {
	if err == nil || !models.IsTransient(err) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

func errorKind(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.As(err, &se) && se.Code == http.StatusTooManyRequests:
		return "rate_limited"
	case errors.As(err, &se) && se.Code >= 500:
		return "upstream_5xx"
	case errors.As(err, &se):
		return "http_status"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case models.IsParse(err):
		return "parse"
	default:
		return "network"
	}
}
