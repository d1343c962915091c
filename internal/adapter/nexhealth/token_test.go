package nexhealth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newAuthServer returns an upstream stub whose auth endpoint fails the first
// failCount calls and succeeds afterwards, counting calls in calls.
func newAuthServer(t *testing.T, failCount int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authenticates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("expected raw api key in Authorization, got %q", r.Header.Get("Authorization"))
		}
		n := atomic.AddInt32(calls, 1)
		if int(n) <= failCount {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"token":"tok-123"}}`))
	}))
}

func TestToken_CachedWithinTTL(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, 0, &calls)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "test-api-key", srv.Client(), zerolog.Nop())

	for i := 0; i < 2; i++ {
		tok, err := tc.Token(context.Background())
		if err != nil {
			t.Fatalf("Token #%d: %v", i+1, err)
		}
		if tok != "tok-123" {
			t.Errorf("expected tok-123, got %q", tok)
		}
	}
	if calls != 1 {
		t.Errorf("expected exactly one upstream auth call, got %d", calls)
	}

	// Force expiry; the next call must refresh.
	tc.mu.Lock()
	tc.expiresAt = time.Now().Add(-time.Minute)
	tc.mu.Unlock()

	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("Token after expiry: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected second upstream auth call after expiry, got %d", calls)
	}
}

func TestToken_Invalidate(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, 0, &calls)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "test-api-key", srv.Client(), zerolog.Nop())
	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	tc.Invalidate()
	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("Token after Invalidate: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected refresh after Invalidate, got %d calls", calls)
	}
}

func TestToken_MissingTokenField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "test-api-key", srv.Client(), zerolog.Nop())
	_, err := tc.Token(context.Background())
	if err == nil {
		t.Fatal("expected error for missing token field")
	}
	if _, ok := err.(*AuthError); !ok {
		t.Errorf("expected AuthError, got %T", err)
	}
	if err.Error() != "could not retrieve bearer token" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestTokenWithRetry_SucceedsAfterFailures(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, 2, &calls)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "test-api-key", srv.Client(), zerolog.Nop())

	start := time.Now()
	tok, err := tc.TokenWithRetry(context.Background(), 3, 10*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("TokenWithRetry: %v", err)
	}
	if tok != "tok-123" {
		t.Errorf("expected tok-123, got %q", tok)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	// Backoff doubles: 10ms after the first failure, 20ms after the second.
	if elapsed < 30*time.Millisecond {
		t.Errorf("expected at least 30ms of backoff, got %v", elapsed)
	}
}

func TestTokenWithRetry_Exhausted(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, 1000, &calls)
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "test-api-key", srv.Client(), zerolog.Nop())
	_, err := tc.TokenWithRetry(context.Background(), 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected exactly maxAttempts=3 tries, got %d", calls)
	}
}

func TestTokenWithRetry_ContextCancelled(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, 1000, &calls)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tc := NewTokenCache(srv.URL, "test-api-key", srv.Client(), zerolog.Nop())
	if _, err := tc.TokenWithRetry(ctx, 3, time.Hour); err == nil {
		t.Fatal("expected context error")
	}
}
