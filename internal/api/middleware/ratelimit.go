package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP with a token bucket
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	Rate  float64       // tokens per second, default 0.2 (one every 5s)
	Burst int           // default: 5
	Idle  time.Duration // forget clients idle this long, default 10m
}

// NewRateLimiter creates a rate limiter. Call Cleanup periodically, or run
// StartCleanup, to forget idle clients.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 0.2
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.Idle <= 0 {
		config.Idle = 10 * time.Minute
	}

	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(config.Rate),
		burst:   config.Burst,
		idle:    config.Idle,
		now:     time.Now,
	}
}

// limiter returns the bucket for ip, creating it on first use
func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.limiter(getClientIP(r))
		now := rl.now()

		res := lim.ReserveN(now, 1)
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			retryAfter := int(math.Ceil(delay.Seconds()))

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.burst))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many attempts. Please try again later.")
			return
		}

		remaining := int(lim.TokensAt(now))
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.burst))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		next.ServeHTTP(w, r)
	})
}

// Cleanup forgets clients idle for longer than the configured interval and
// returns how many were removed
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idle {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until stop is closed
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
