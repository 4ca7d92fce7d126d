package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Limit is a per-client token bucket: PerMinute refill, Burst capacity.
// PerMinute <= 0 disables limiting.
type Limit struct {
	PerMinute int
	Burst     int
}

type bucket struct {
	tokens float64
	last   time.Time
}

type limiter struct {
	rate  float64 // tokens per second
	burst float64
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(l Limit, ttl time.Duration, now func() time.Time) *limiter {
	burst := l.Burst
	if burst < 1 {
		burst = 1
	}
	return &limiter{
		rate:      float64(l.PerMinute) / 60,
		burst:     float64(burst),
		ttl:       ttl,
		now:       now,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
	}
}

func (l *limiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.last) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}
	b.tokens = min(l.burst, b.tokens+now.Sub(b.last).Seconds()*l.rate)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimit limits requests per API key, or per remote IP when no key is
// presented.
func RateLimit(l Limit) func(http.Handler) http.Handler {
	return rateLimit(l, time.Now)
}

func rateLimit(l Limit, now func() time.Time) func(http.Handler) http.Handler {
	if l.PerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := newLimiter(l, 10*time.Minute, now)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.allow(clientKey(r)) {
				deny(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey ignores X-Forwarded-For: the API is meant to be reached
// directly, never through a proxy.
func clientKey(r *http.Request) string {
	if k := APIKey(r); k != "" {
		return "key:" + k
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
