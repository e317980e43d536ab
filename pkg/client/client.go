// Package client provides a minimal WaniKani API v2 client with bearer
// token authentication and a typed error taxonomy.
package client

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
	"sync"
	"time"

	"github.com/Sternrassler/wanikani-dict/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for WaniKani client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanikani_requests_total",
		Help: "Total WaniKani requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wanikani_request_duration_seconds",
		Help:    "WaniKani request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanikani_errors_total",
		Help: "Total WaniKani errors by kind",
	}, []string{"kind"})
)

const (
	// DefaultBaseURL is the WaniKani API v2 root.
	DefaultBaseURL = "https://api.wanikani.com/v2"

	// LocalProtocolVersion is the API version this client speaks.
	LocalProtocolVersion = 2

	// HeaderRevision selects the WaniKani API revision when set.
	HeaderRevision = "Wanikani-Revision"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root that resource names are appended to.
	BaseURL string

	// Token is the personal API token. Empty means no token.
	Token string

	// Enabled gates all fetches. A disabled client returns nil pages
	// without touching the network.
	Enabled bool

	// APIRevision is sent as the Wanikani-Revision header when non-empty.
	APIRevision string

	// HTTPClient overrides the transport (tests, proxies). The default
	// client has no cookie jar and no timeout of its own.
	HTTPClient *http.Client
}

// DefaultConfig returns a disabled configuration for the public API.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Token:   token,
	}
}

// Session is the client's mutable authentication state.
type Session struct {
	Enabled       bool
	Token         string
	LocalVersion  int
	RemoteVersion int
}

// HasToken reports whether a token is configured.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// Client is the WaniKani API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	apiRevision string
	rateLimits  *ratelimit.Observer
	logger      zerolog.Logger

	mu      sync.RWMutex
	session Session
}

// New creates a new WaniKani client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !isHTTPURL(base) {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := log.With().Str("component", "wanikani-client").Logger()

	c := &Client{
		httpClient:  httpClient,
		baseURL:     base,
		apiRevision: cfg.APIRevision,
		rateLimits:  ratelimit.NewObserver(logger),
		logger:      logger,
		session: Session{
			LocalVersion: LocalProtocolVersion,
		},
	}
	c.Configure(cfg.Token, cfg.Enabled)

	return c, nil
}

// Configure replaces the token and enabled flag. No I/O is performed.
func (c *Client) Configure(token string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Token = token
	c.session.Enabled = enabled
}

// SetEnabled toggles the enabled flag.
func (c *Client) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Enabled = enabled
}

// SetToken replaces the API token. An empty string clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Token = token
}

// Enabled reports whether fetches are allowed.
func (c *Client) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Enabled
}

// IsReady reports whether a token is present. It does not contact the API.
func (c *Client) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.HasToken()
}

// Session returns a snapshot of the session state.
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// RateLimit returns the rate limit state of the last response, if any.
func (c *Client) RateLimit() *ratelimit.State {
	return c.rateLimits.Last()
}

// FetchResource performs one GET against <BaseURL>/<resource>?<params>.
// It returns (nil, nil) without any I/O when the client is disabled.
func (c *Client) FetchResource(ctx context.Context, resource string, params url.Values) (*PageResult, error) {
	if !c.Enabled() {
		return nil, nil
	}

	resource = strings.Trim(resource, "/")
	if resource == "" {
		return nil, c.fail("", &ConnectionError{
			Action: c.baseURL.String(),
			Params: params,
			Err:    errors.New("resource name is required"),
		})
	}

	u := c.baseURL.JoinPath(resource)
	u.RawQuery = params.Encode()

	return c.invoke(ctx, u, params)
}

// FetchByURL performs one GET against an absolute URL, typically a
// pages.next_url returned by a previous call. Same gate as FetchResource.
func (c *Client) FetchByURL(ctx context.Context, rawURL string) (*PageResult, error) {
	if !c.Enabled() {
		return nil, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, c.fail("", &ConnectionError{Action: rawURL, Err: fmt.Errorf("parse page url: %w", err)})
	}
	if !isHTTPURL(u) {
		return nil, c.fail(u.Path, &ConnectionError{
			Action: rawURL,
			Err:    fmt.Errorf("page url must be an absolute http(s) url (got %q)", rawURL),
		})
	}

	return c.invoke(ctx, u, nil)
}

// Subjects fetches the first page of the subjects collection filtered
// by subject type.
func (c *Client) Subjects(ctx context.Context, types []string) (*PageResult, error) {
	params := url.Values{}
	if len(types) > 0 {
		params.Set("types", strings.Join(types, ","))
	}
	return c.FetchResource(ctx, "subjects", params)
}

// invoke executes a single request attempt and decodes the page.
func (c *Client) invoke(ctx context.Context, u *url.URL, params url.Values) (*PageResult, error) {
	action := u.String()
	endpoint := u.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, action, nil)
	if err != nil {
		return nil, c.fail(endpoint, &ConnectionError{Action: action, Params: params, Err: err})
	}

	session := c.Session()
	req.Header.Set("Content-Type", "application/json")
	if session.HasToken() {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}
	if c.apiRevision != "" {
		req.Header.Set(HeaderRevision, c.apiRevision)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", u.RawQuery).
		Msg("Executing WaniKani request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, c.fail(endpoint, &ConnectionError{Action: action, Params: params, Err: err})
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.rateLimits.Observe(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, c.fail(endpoint, &HTTPStatusError{
			Action:     action,
			Params:     params,
			StatusCode: resp.StatusCode,
		})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(endpoint, &MalformedResponseError{
			Action:       action,
			Params:       params,
			StatusCode:   resp.StatusCode,
			ResponseText: string(body),
			Err:          err,
		})
	}

	page, err := decodePage(body)
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		apiErr.Action = action
		apiErr.Params = params
		apiErr.StatusCode = resp.StatusCode
		return nil, c.fail(endpoint, apiErr)
	case err != nil:
		return nil, c.fail(endpoint, &MalformedResponseError{
			Action:       action,
			Params:       params,
			StatusCode:   resp.StatusCode,
			ResponseText: string(body),
			Err:          err,
		})
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("records", len(page.Data)).
		Int("total_count", page.TotalCount).
		Msg("WaniKani page received")

	return page, nil
}

// decodePage parses a collection body. A top-level "error" member wins
// over the page contents and is returned as an *APIError.
func decodePage(body []byte) (*PageResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode body: not a JSON object")
	}

	if raw, ok := fields["error"]; ok {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("decode error field: %w", err)
		}
		return nil, &APIError{Value: value}
	}

	var page PageResult
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}

// fail records and logs a client error before returning it.
func (c *Client) fail(endpoint string, err Error) error {
	errorsTotal.WithLabelValues(string(err.Kind())).Inc()
	details := err.Details()
	c.logger.Warn().
		Err(err).
		Str("endpoint", endpoint).
		Str("kind", string(err.Kind())).
		Int("status", details.Status).
		Msg("WaniKani request failed")
	return err
}

func isHTTPURL(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
