package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/asmaf9056/afatimachtbot36/internal/identity"
	"github.com/asmaf9056/afatimachtbot36/internal/metrics"
)

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per visitor. Visitors without an identity are keyed by IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitorLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per visitor with the given burst. Buckets unused for
// idle are evicted by Cleanup.
func NewRateLimiter(perMinute, burst int, idle time.Duration, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitorLimiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idle:     idle,
		metrics:  m,
		now:      time.Now,
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitorLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	now := rl.now()
	v.lastSeen = now
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Cleanup evicts idle buckets and returns how many were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.idle)
	removed := 0
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Run evicts idle buckets every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := identity.VisitorIDFromContext(r.Context())
		if key == "" {
			key = identity.IPFromRequest(r)
		}
		if !rl.Allow(key) {
			rl.metrics.IncRateLimited()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded, please slow down"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
