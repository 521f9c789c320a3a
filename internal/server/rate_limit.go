package server

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerMinute is the sustained request rate allowed per client.
	// Default: 60
	RequestsPerMinute int
	// Burst is how many requests a client may send at once. Default:
	// RequestsPerMinute.
	Burst int
	// CleanupInterval is how often idle clients are forgotten.
	// Default: 5 minutes
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns the default rate limiter configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		Burst:             60,
		CleanupInterval:   5 * time.Minute,
	}
}

// bucket is the token bucket of one client.
type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter is a per-client token bucket. Tokens refill continuously at
// RequestsPerMinute and are capped at Burst.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	perSec   float64
	burst    float64
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine,
// which runs until Stop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = config.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		perSec:   float64(config.RequestsPerMinute) / 60,
		burst:    float64(config.Burst),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop(config.CleanupInterval)
	return rl
}

// Allow takes one token from the client's bucket.
//
// Parameters:
//   - client: The client key, usually its IP address.
//
// Returns:
//   - bool: false when the bucket is empty.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: rl.burst, last: now}
		rl.buckets[client] = b
	}
	b.tokens = min(rl.burst, b.tokens+now.Sub(b.last).Seconds()*rl.perSec)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// retryAfter is the number of seconds until one token has refilled.
func (rl *RateLimiter) retryAfter() int {
	return max(1, int(1/rl.perSec+0.5))
}

// forgetIdle drops the clients whose bucket has been full for a while.
func (rl *RateLimiter) forgetIdle(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for client, b := range rl.buckets {
		if now.Sub(b.last) > idle {
			delete(rl.buckets, client)
		}
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.forgetIdle(interval)
		case <-rl.stopChan:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// RateLimitMiddleware answers 429 with a Retry-After header once a client
// has used up its bucket.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rl.Allow(getClientIP(r)) {
			next(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too Many Requests","message":"Rate limit exceeded. Please try again later."}`))
	}
}

// getClientIP returns the first X-Forwarded-For address, else X-Real-IP,
// else the host part of RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().String()
	}
	return strings.Trim(r.RemoteAddr, "[]")
}
