package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterSweepEvery   = 3 * time.Minute
	rateLimitedResponse = "too many requests, please try again later"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per client address. Used for credential routes.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByMember counts requests per signed-in member and falls back to the client
// address, so members behind one NAT do not share an upload budget.
// It must run after AuthRequired or OptionalAuth.
func ByMember(c *gin.Context) string {
	if id := GetUserID(c); id != 0 {
		return "member:" + strconv.FormatUint(uint64(id), 10)
	}
	return ByClientIP(c)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per key.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	key     KeyFunc
	now     func() time.Time
}

// NewRateLimiter allows rps requests per second with bursts of burst per key.
// The key defaults to the client address.
func NewRateLimiter(rps float64, burst int, key ...KeyFunc) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		key:     ByClientIP,
		now:     time.Now,
	}
	if len(key) > 0 && key[0] != nil {
		rl.key = key[0]
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = rl.now()
	return b.limiter
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		rl.sweep()
	}
}

// sweep drops buckets idle for longer than limiterIdleTTL.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-limiterIdleTTL)
	rl.mu.Lock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
	rl.mu.Unlock()
}

// Middleware rejects requests over the budget with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.limiterFor(rl.key(c))

		if !limiter.Allow() {
			wait := 1
			if rl.rps > 0 {
				wait = int(math.Ceil(1 / float64(rl.rps)))
			}
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Response{
				Error: rateLimitedResponse,
				Code:  http.StatusTooManyRequests,
			})
			return
		}

		c.Next()
	}
}
