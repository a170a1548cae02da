package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLimiter(clock *fakeClock, ttl time.Duration) *RateLimiter {
	limiter := NewRateLimiter(1, 1, ttl)
	limiter.now = clock.Now
	return limiter
}

func TestRateLimiterAllow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	limiter := newTestLimiter(clock, time.Hour)

	if !limiter.Allow("client") {
		t.Fatalf("expected first request to be allowed")
	}
	if limiter.Allow("client") {
		t.Fatalf("expected second request to be rate limited")
	}
	if !limiter.Allow("other") {
		t.Fatalf("expected other client to have its own bucket")
	}

	clock.now = clock.now.Add(1100 * time.Millisecond)

	if !limiter.Allow("client") {
		t.Fatalf("expected request after refill to be allowed")
	}
}

// TestRateLimiterSweepsIdleClients tests that idle buckets are evicted after the ttl.
func TestRateLimiterSweepsIdleClients(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	limiter := newTestLimiter(clock, time.Minute)

	limiter.Allow("a")
	limiter.Allow("b")
	if limiter.size() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", limiter.size())
	}

	clock.now = clock.now.Add(2 * time.Minute)
	limiter.Allow("c")
	if limiter.size() != 1 {
		t.Fatalf("expected idle clients to be swept, got %d", limiter.size())
	}
}

// TestRateLimiterWrap tests the 429 response and that a disabled limiter passes through.
func TestRateLimiterWrap(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	disabled := NewRateLimiter(0, 0, 0)
	if disabled != nil {
		t.Fatalf("expected nil limiter for rps 0")
	}
	rec := httptest.NewRecorder()
	disabled.Wrap(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}

	clock := &fakeClock{now: time.Unix(1000, 0)}
	handler := newTestLimiter(clock, time.Hour).Wrap(next)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("expected first request allowed, got %d", first.Code)
	}
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}
