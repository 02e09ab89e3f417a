package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// clientWindow tracks requests from one IP inside the current window
type clientWindow struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter caps requests per client IP over a sliding window. It
// protects the on-demand quote endpoints from burning the upstream quota.
type RateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*clientWindow
	maxRequests  int
	windowPeriod time.Duration
}

// NewRateLimiter creates a rate limiter allowing maxRequests per
// windowPeriod for each client IP, and starts its cleanup loop.
func NewRateLimiter(maxRequests int, windowPeriod time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:      make(map[string]*clientWindow),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
	}
	go rl.startCleanup()
	return rl
}

// startCleanup periodically drops expired windows
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for ip, w := range rl.windows {
			if now.Sub(w.FirstAt) > rl.windowPeriod {
				delete(rl.windows, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow records one request from ip and reports whether it fits the window
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.FirstAt) > rl.windowPeriod {
		rl.windows[ip] = &clientWindow{Count: 1, FirstAt: now}
		return true
	}

	w.Count++
	return w.Count <= rl.maxRequests
}

// Middleware returns the gin handler enforcing the limit
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}
