package nexhealth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Upstream tokens last 60 minutes; caching for 55 leaves a margin against
// clock skew and in-flight request latency.
const tokenTTL = 55 * time.Minute

const acceptHeader = "application/vnd.Nexhealth+json;version=2"

// TokenCache exchanges a static API key for a short-lived bearer token and
// caches it until shortly before expiry. Safe for use from concurrent
// requests; a race between two refreshes just overwrites equivalent data.
type TokenCache struct {
	authURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates a cache against baseURL's authentication endpoint.
func NewTokenCache(baseURL, apiKey string, client *http.Client, logger zerolog.Logger) *TokenCache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenCache{
		authURL: baseURL + "/authenticates",
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
	}
}

// Token returns the cached token while it is fresh, refreshing otherwise.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.token != "" && time.Now().Before(t.expiresAt) {
		tok := t.token
		t.mu.Unlock()
		return tok, nil
	}
	t.mu.Unlock()

	return t.refresh(ctx)
}

// TokenWithRetry wraps Token with exponential backoff: the delay doubles on
// each failed attempt. After maxAttempts failures the last error is surfaced
// together with the attempt count.
func (t *TokenCache) TokenWithRetry(ctx context.Context, maxAttempts int, initialDelay time.Duration) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	var lastErr error
	delay := initialDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tok, err := t.Token(ctx)
		if err == nil {
			return tok, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		t.logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("token refresh failed, retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("token refresh failed after %d attempts: %w", maxAttempts, lastErr)
}

// Invalidate clears the cached token so the next call forces a refresh.
// Callers must invoke this after observing a 401/403 with a cached token.
func (t *TokenCache) Invalidate() {
	t.mu.Lock()
	t.token = ""
	t.expiresAt = time.Time{}
	t.mu.Unlock()
}

// refresh performs the key-for-token exchange. The exchange itself carries
// the raw API key in Authorization, not a bearer token.
func (t *TokenCache) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.authURL, nil)
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Accept", acceptHeader)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Message: fmt.Sprintf("authentication endpoint returned %d", resp.StatusCode)}
	}

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &AuthError{Message: fmt.Sprintf("decode authentication response: %v", err)}
	}
	if body.Data.Token == "" {
		return "", &AuthError{Message: "could not retrieve bearer token"}
	}

	t.mu.Lock()
	t.token = body.Data.Token
	t.expiresAt = time.Now().Add(tokenTTL)
	t.mu.Unlock()

	t.logger.Debug().Msg("bearer token refreshed")
	return body.Data.Token, nil
}
