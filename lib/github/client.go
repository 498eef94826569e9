// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/seatreport/lib/clock"
	"github.com/bureau-foundation/seatreport/lib/netutil"
)

// githubAPIVersion is the GitHub REST API version header. Pinning the
// version ensures consistent behavior as GitHub evolves the API.
const githubAPIVersion = "2022-11-28"

// defaultBaseURL is the base URL for the public GitHub API. GitHub
// Enterprise Server installations use https://HOST/api/v3.
const defaultBaseURL = "https://api.github.com"

const defaultUserAgent = "seatreport"

const (
	defaultPerPage              = 100
	defaultMaxRetries           = 3
	defaultRetryInitialInterval = time.Second
	defaultRetryMaxInterval     = 30 * time.Second
)

// errorSnippetLimit bounds how much of a non-JSON error body is kept
// in an APIError.
const errorSnippetLimit = 512

// Config holds configuration for creating a GitHub API Client.
type Config struct {
	// BaseURL is the root URL for API requests. Defaults to
	// "https://api.github.com". Must use HTTPS.
	BaseURL string

	// Token is a personal access token or fine-grained token with
	// access to the enterprise. Required.
	Token string

	// HTTPClient is used for all HTTP requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides time operations. Defaults to clock.Real().
	// Inject clock.Fake() in tests for deterministic behavior.
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// PerPage is the page size requested from list endpoints.
	// Defaults to 100, the GitHub maximum.
	PerPage int

	// MaxRetries bounds how many times a request is retried after a
	// transient failure (429, 5xx, transport error, rate limit).
	// Zero selects the default of 3; a negative value disables retry.
	MaxRetries int

	// RetryInitialInterval is the first backoff delay. Later delays
	// grow exponentially up to 30 seconds. Defaults to one second.
	RetryInitialInterval time.Duration

	// RequestsPerSecond caps the request rate across all goroutines
	// sharing the Client. Zero disables the cap; the X-RateLimit
	// guard applies either way.
	RequestsPerSecond float64

	// UserAgent is sent with every request. Defaults to "seatreport".
	UserAgent string
}

// Client is a typed GitHub REST API client with authentication,
// rate limiting, retry, pagination, and structured error handling.
type Client struct {
	baseURL              string
	httpClient           *http.Client
	auth                 authenticator
	rateLimit            *rateLimitTracker
	limiter              *rate.Limiter
	perPage              int
	maxRetries           int
	retryInitialInterval time.Duration
	userAgent            string
	clock                clock.Clock
	logger               *slog.Logger
}

// NewClient creates a GitHub API client from the given configuration.
// Returns an error if the configuration is invalid (missing token,
// non-HTTPS URL).
func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}
	if config.Token == "" {
		return nil, fmt.Errorf("github: no authentication configured (set Token)")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	perPage := config.PerPage
	if perPage <= 0 || perPage > defaultPerPage {
		perPage = defaultPerPage
	}

	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	retryInitialInterval := config.RetryInitialInterval
	if retryInitialInterval <= 0 {
		retryInitialInterval = defaultRetryInitialInterval
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:              baseURL,
		httpClient:           httpClient,
		auth:                 newTokenAuth(config.Token),
		rateLimit:            newRateLimitTracker(clk),
		limiter:              limiter,
		perPage:              perPage,
		maxRetries:           maxRetries,
		retryInitialInterval: retryInitialInterval,
		userAgent:            userAgent,
		clock:                clk,
		logger:               logger,
	}, nil
}

// fetch executes an authenticated GET against an absolute URL and
// returns the body and headers of a 200 response. Transient failures
// are retried per the client's retry policy; any other non-200
// response returns an *APIError immediately.
func (client *Client) fetch(ctx context.Context, url string) ([]byte, http.Header, error) {
	var (
		body   []byte
		header http.Header
	)
	policy := client.newRetryPolicy(ctx)

	operation := func() error {
		response, err := client.doRaw(ctx, http.MethodGet, url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer response.Body.Close()

		data, err := netutil.ReadResponse(response.Body)
		if err != nil {
			return fmt.Errorf("github: reading response body: %w", err)
		}

		if response.StatusCode != http.StatusOK {
			apiError := parseAPIErrorFromBody(response.StatusCode, data)
			switch {
			case IsRateLimited(apiError):
				// The guard in doRaw does the waiting before the retry.
				client.rateLimit.penalize(response.Header)
				policy.skipNextDelay()
				return apiError
			case IsTransient(apiError):
				return apiError
			default:
				return backoff.Permanent(apiError)
			}
		}

		body, header = data, response.Header
		return nil
	}

	notify := func(err error, delay time.Duration) {
		client.logger.Warn("retrying github request",
			"url", url,
			"delay", delay,
			"error", err,
		)
	}

	if err := backoff.RetryNotifyWithTimer(operation, policy.backOff, notify, &clockTimer{clock: client.clock}); err != nil {
		return nil, nil, err
	}
	return body, header, nil
}

// doRaw executes one HTTP request with authentication and rate limit
// waiting, but without response parsing. The caller is responsible for
// closing the response body.
func (client *Client) doRaw(ctx context.Context, method, url string) (*http.Response, error) {
	// Preemptive rate limit check.
	if err := client.rateLimit.wait(ctx, client.logger); err != nil {
		return nil, err
	}
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	request, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}

	authHeader, err := client.auth.AuthorizationHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("github: authentication: %w", err)
	}
	request.Header.Set("Authorization", authHeader)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	request.Header.Set("User-Agent", client.userAgent)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: %s %s: %w", method, url, err)
	}

	// Update rate limit tracker from every response.
	client.rateLimit.update(response.Header)

	return response, nil
}

// get is a convenience method for GET requests that return a single JSON
// object. Decodes the response into result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := client.fetch(ctx, client.baseURL+path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("github: decoding %s: %w", path, err)
	}
	return nil
}

// parseAPIErrorFromBody parses a GitHub API error from a status code
// and response body.
func parseAPIErrorFromBody(statusCode int, body []byte) *APIError {
	apiError := &APIError{
		StatusCode: statusCode,
		Body:       netutil.Snippet(body, errorSnippetLimit),
	}

	var wireError struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.DocumentationURL = wireError.DocumentationURL
	} else if len(body) > 0 {
		apiError.Message = apiError.Body
	} else {
		apiError.Message = http.StatusText(statusCode)
	}

	return apiError
}

// IsContextError reports whether err came from context cancellation or
// deadline expiry rather than from GitHub.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
