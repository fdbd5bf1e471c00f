package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per key.
type limiterSet struct {
	mu    sync.Mutex
	r     rate.Limit
	b     int
	byKey map[string]*keyLimiter
}

func newLimiterSet(r rate.Limit, b int) *limiterSet {
	ls := &limiterSet{r: r, b: b, byKey: make(map[string]*keyLimiter)}

	// Drop buckets idle for 10 minutes, every 5 minutes.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ls.sweep(time.Now().Add(-10 * time.Minute))
		}
	}()
	return ls
}

func (ls *limiterSet) allow(key string) bool {
	ls.mu.Lock()
	kl, ok := ls.byKey[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(ls.r, ls.b)}
		ls.byKey[key] = kl
	}
	kl.lastSeen = time.Now()
	ls.mu.Unlock()
	return kl.limiter.Allow()
}

func (ls *limiterSet) sweep(cutoff time.Time) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for k, kl := range ls.byKey {
		if kl.lastSeen.Before(cutoff) {
			delete(ls.byKey, k)
		}
	}
}

// RateLimit provides per-IP token-bucket rate limiting.
// r = requests per second, b = burst size.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	return RateLimitBy(r, b, func(c *gin.Context) string { return c.ClientIP() })
}

// RateLimitBy limits requests per key. The login route keys by IP and path
// so password guessing gets its own, smaller bucket.
func RateLimitBy(r rate.Limit, b int, key func(*gin.Context) string) gin.HandlerFunc {
	ls := newLimiterSet(r, b)
	return func(c *gin.Context) {
		if !ls.allow(key(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
