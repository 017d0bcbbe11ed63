package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zerocool-source/apiV2/internal/shared/metrics"
)

// SecurityHeaders adds security headers to responses
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// RateLimiter decides whether a request from a given key (client IP) may
// proceed. It is injected into the router wiring rather than living as
// process-global state, so a distributed limiter can replace the local one
// without touching any handler.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter is a per-key token bucket limiter backed by x/time.
// Buckets that have not been touched for maxIdle are swept periodically so
// the per-key map does not grow with every client IP ever seen.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	maxIdle  time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a per-key token bucket limiter and starts
// its eviction sweep
func NewTokenBucketLimiter(rps int, burst int) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		maxIdle:  3 * time.Minute,
	}
	go l.sweep(time.Minute)
	return l
}

// Allow reports whether the key may proceed
func (l *TokenBucketLimiter) Allow(key string) bool {
	l.mu.Lock()
	c, exists := l.limiters[key]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()

	return c.limiter.Allow()
}

func (l *TokenBucketLimiter) sweep(interval time.Duration) {
	for range time.Tick(interval) {
		l.removeStale()
	}
}

// removeStale drops buckets idle for longer than maxIdle. A dropped key's
// next request simply builds a fresh bucket.
func (l *TokenBucketLimiter) removeStale() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.limiters {
		if time.Since(c.lastSeen) > l.maxIdle {
			delete(l.limiters, key)
		}
	}
}

// Throttle creates middleware that rejects requests the limiter denies
func Throttle(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				metrics.RecordRateLimitRejection()
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return strings.Split(r.RemoteAddr, ":")[0]
}

// BodyLimit caps request body size
func BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)
		next.ServeHTTP(w, r)
	})
}

// CORS returns a permissive CORS middleware for the office dashboard and
// the technician mobile app
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
