package internal

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket keyed by client IP.
type RateLimiter struct {
	mu        sync.Mutex
	store     map[string]*rateEntry
	rps       float64
	burst     float64
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type rateEntry struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter returns nil when rps is not positive, which disables limiting.
func NewRateLimiter(rps int64, burst int64, ttl time.Duration) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	limiter := &RateLimiter{
		store: make(map[string]*rateEntry),
		rps:   float64(rps),
		burst: float64(burst),
		ttl:   ttl,
		now:   time.Now,
	}
	if limiter.burst <= 0 {
		limiter.burst = limiter.rps
		if limiter.burst < 1 {
			limiter.burst = 1
		}
	}
	if limiter.ttl <= 0 {
		limiter.ttl = 10 * time.Minute
	}
	return limiter
}

// Wrap applies the limiter to next. A nil limiter returns next unchanged.
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	retryAfter := strconv.Itoa(int(1/l.rps) + 1)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			IncRejected("rate_limited")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow consumes one token for key.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	entry, ok := l.store[key]
	if !ok {
		l.store[key] = &rateEntry{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(entry.last).Seconds()
	entry.tokens += elapsed * l.rps
	if entry.tokens > l.burst {
		entry.tokens = l.burst
	}
	entry.last = now

	if entry.tokens < 1 {
		return false
	}
	entry.tokens -= 1
	return true
}

// sweep drops clients idle for longer than ttl. Caller holds mu.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}
	l.lastSweep = now
	for key, entry := range l.store {
		if now.Sub(entry.last) > l.ttl {
			delete(l.store, key)
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.store)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
