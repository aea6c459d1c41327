// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with per-identity
// buckets and opportunistic garbage collection, for edge-level abuse control in
// a single-process deployment. Horizontally scaled deployments should prefer a
// distributed limiter to enforce global limits.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket. It should
// return a stable string for the duration of a request (e.g., "user:<id>" or
// "ip:<addr>").
type keyFunc func(*gin.Context) string

// KeyByUserOrIP returns a keyFunc that prefers the submitting account (from
// the X-User-ID header set by field clients) and falls back to the client IP.
// Keys are prefixed so user and IP namespaces never collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetHeader("X-User-ID"); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor holds a single limiter and the last time it was seen, so idle
// buckets can be evicted.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter. Buckets are
// created on demand in a mutex-guarded map; idle buckets are evicted after a
// TTL via opportunistic cleanup during lookups. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn. A burst <= 0 is coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns (and touches) the limiter for key, creating it if absent.
// Cleanup runs after ~5000 lookups and BEFORE touching the requested visitor,
// so an idle bucket can be evicted even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// Handler returns a Gin middleware that enforces per-key token-bucket limits.
// Rejected requests receive 429 with a compact JSON body and a minimal
// Retry-After header; field clients treat 429 as a transient failure and
// retry with backoff.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.keyFn(c)
		lim := rl.getVisitor(key)

		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
