package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Alexander-D-Karpov/ampstream/internal/config"
	"github.com/Alexander-D-Karpov/ampstream/internal/log"
)

// errHTTPStatus marks responses that arrived but carried a 4xx/5xx status.
var errHTTPStatus = errors.New("unexpected HTTP status")

// Options configures the shared transport used by the search client and the
// resolution providers.
type Options struct {
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond int
	BurstSize         int
	UserAgent         string
}

// OptionsFromConfig maps the api section of the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:           cfg.RequestTimeout(),
		Retries:           cfg.API.Retries,
		RequestsPerSecond: cfg.API.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.API.RateLimit.BurstSize,
		UserAgent:         cfg.API.UserAgent,
	}
}

// Client issues rate-limited GET requests and returns raw JSON bodies.
type Client struct {
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     zerolog.Logger

	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewClient(opts Options) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	if opts.Timeout > 0 {
		retryClient.HTTPClient.Timeout = opts.Timeout
	}
	retryClient.Logger = nil
	// Hand the final response back instead of retryablehttp's generic
	// "giving up" error so the status can be reported.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient: retryClient,
		limiter:    rate.NewLimiter(limit, burst),
		userAgent:  opts.UserAgent,
		logger:     log.WithComponent("api"),
	}
}

// WithLogger replaces the component logger.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// getJSON performs GET baseURL?params and returns the body of a 2xx/3xx
// response. Any transport failure or >= 400 status is an error.
func (c *Client) getJSON(ctx context.Context, baseURL string, params url.Values) ([]byte, error) {
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	fullURL := baseURL
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	reqNo := c.requestCount.Add(1)
	c.logger.Debug().Int64("request", reqNo).Str("url", fullURL).Msg("GET")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, c.fail(fullURL, startTime, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(fullURL, startTime, fmt.Errorf("do request: %w", err))
	}

	body, readErr := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug().Err(closeErr).Msg("failed to close response body")
	}

	if readErr != nil {
		return nil, c.fail(fullURL, startTime, fmt.Errorf("read response body: %w", readErr))
	}

	if resp.StatusCode >= 400 {
		return body, c.fail(fullURL, startTime, fmt.Errorf("%w: %s", errHTTPStatus, resp.Status))
	}

	c.logger.Debug().
		Str("url", fullURL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("response")

	return body, nil
}

func (c *Client) fail(fullURL string, startTime time.Time, err error) error {
	errs := c.errorCount.Add(1)
	c.logger.Debug().
		Err(err).
		Str("url", fullURL).
		Dur("duration", time.Since(startTime)).
		Int64("errors", errs).
		Msg("request failed")
	return err
}

// Stats reports request counters for diagnostics.
func (c *Client) Stats() map[string]int64 {
	return map[string]int64{
		"total_requests": c.requestCount.Load(),
		"total_errors":   c.errorCount.Load(),
	}
}
