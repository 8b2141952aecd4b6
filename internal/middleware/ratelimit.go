package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openprep/exam-gateway/internal/response"
)

// RateLimiter is a token-bucket limiter keyed by authenticated user (falling
// back to client IP before auth). Used on the submit route, where hammering
// retry would otherwise multiply answer-key fetches.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	interval time.Duration
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
	}

	// Drop stale buckets every minute.
	go func() {
		for range time.Tick(time.Minute) {
			rl.cleanup()
		}
	}()

	return rl
}

// Middleware returns a Gin middleware enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			key = claims.UserID
		}

		rl.mu.Lock()
		b, exists := rl.buckets[key]
		if !exists {
			b = &bucket{tokens: rl.rate, lastSeen: time.Now()}
			rl.buckets[key] = b
		}

		// Refill based on elapsed time.
		elapsed := time.Since(b.lastSeen)
		refill := int(elapsed/rl.interval) * rl.rate
		if refill > 0 {
			b.tokens += refill
			if b.tokens > rl.rate {
				b.tokens = rl.rate
			}
			b.lastSeen = time.Now()
		}

		if b.tokens <= 0 {
			rl.mu.Unlock()
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		b.tokens--
		rl.mu.Unlock()
		c.Next()
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if time.Since(b.lastSeen) > 3*time.Minute {
			delete(rl.buckets, key)
		}
	}
}
