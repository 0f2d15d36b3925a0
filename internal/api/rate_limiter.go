package api

import (
	"clouddb/internal/logger"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key (IP or API key).
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	cleanup  time.Duration // how often to prune stale entries

	quit     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter.
// rate = requests per minute, burst = max burst size.
func NewRateLimiter(ratePerMinute float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(ratePerMinute / 60.0), // convert to per-second
		burst:    burst,
		cleanup:  5 * time.Minute,
		quit:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request from the given key is allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.quit) })
}

// Middleware returns a Chi-compatible middleware that rate limits by IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractIP(r)

		if !rl.Allow(key) {
			logger.Log.Info("Rate limit exceeded", zap.String("ip", key), zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too Many Requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MiddlewareByAPIKey returns a middleware that rate limits by API key (falls back to IP).
func (rl *RateLimiter) MiddlewareByAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = extractIP(r) // fallback to IP
		}

		if !rl.Allow(key) {
			logger.Log.Info("Rate limit exceeded for API key/IP", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too Many Requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractIP gets the client IP from the request. RealIP middleware has
// already folded proxy headers into RemoteAddr.
func extractIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// cleanupLoop periodically removes stale buckets.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, v := range rl.visitors {
				// Remove if no activity for 10 minutes
				if now.Sub(v.lastSeen) > 10*time.Minute {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.quit:
			return
		}
	}
}
