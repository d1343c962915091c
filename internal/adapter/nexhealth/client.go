// Package nexhealth talks to the NexHealth practice-management API: bearer
// token acquisition with retry, and a resilient HTTP client that scopes
// every call to the practice's subdomain and location.
package nexhealth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 30 * time.Second

// locationScoped lists the endpoints that require a location_id parameter.
var locationScoped = map[string]bool{
	"patients":            true,
	"providers":           true,
	"operatories":         true,
	"appointments":        true,
	"appointment_slots":   true,
	"appointment_types":   true,
	"availabilities":      true,
	"documents":           true,
	"insurance_plans":     true,
	"insurance_coverages": true,
}

// Client is the authenticated NexHealth REST client. Every request carries
// the subdomain parameter, the location_id parameter for location-scoped
// endpoints, and a cached bearer token.
type Client struct {
	baseURL    string
	subdomain  string
	locationID string
	tokens     *TokenCache
	http       *http.Client
	logger     zerolog.Logger
}

// Config holds client construction parameters.
type Config struct {
	BaseURL    string
	APIKey     string
	Subdomain  string
	LocationID string
	Timeout    time.Duration
}

// NewClient builds a client and its token cache.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		baseURL:    cfg.BaseURL,
		subdomain:  cfg.Subdomain,
		locationID: cfg.LocationID,
		tokens:     NewTokenCache(cfg.BaseURL, cfg.APIKey, httpClient, logger),
		http:       httpClient,
		logger:     logger,
	}
}

// Tokens exposes the token cache, mainly for tests and health reporting.
func (c *Client) Tokens() *TokenCache { return c.tokens }

// Get performs an authenticated GET against an endpoint such as "patients".
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, query, nil)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, nil, body)
}

// do issues one upstream call. A 401/403 with a cached token invalidates the
// cache and retries once with a fresh token; every other failure is
// classified and returned.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body interface{}) (json.RawMessage, error) {
	raw, status, err := c.doOnce(ctx, method, endpoint, query, body)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.logger.Warn().Int("status", status).Str("endpoint", endpoint).
			Msg("cached token rejected, refreshing")
		c.tokens.Invalidate()
		raw, status, err = c.doOnce(ctx, method, endpoint, query, body)
	}
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, &AuthError{Message: fmt.Sprintf("upstream rejected credentials (%d)", status)}
	}
	return raw, nil
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, query url.Values, body interface{}) (json.RawMessage, int, error) {
	token, err := c.tokens.TokenWithRetry(ctx, 3, time.Second)
	if err != nil {
		return nil, 0, err
	}

	u, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("build url for %s: %w", endpoint, err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("subdomain", c.subdomain)
	if locationScoped[endpoint] && c.locationID != "" {
		q.Set("location_id", c.locationID)
	}
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := string(raw)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return raw, resp.StatusCode, nil
}
