package httpx

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an idle client's limiter is kept.
const limiterIdleTTL = 5 * time.Minute

// RateLimitConfig defines per-client rate limit settings.
type RateLimitConfig struct {
	// Rate is the number of requests allowed per second.
	Rate rate.Limit
	// Burst is the maximum burst size.
	Burst      int
	TrustProxy bool
}

// RateLimiter provides IP-based rate limiting. Limiters of idle clients are
// evicted by the cache.
type RateLimiter struct {
	cfg      RateLimitConfig
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a per-IP rate limiter and starts its eviction loop.
// Call Close to stop it.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	cache := ttlcache.New(ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL))
	go cache.Start()
	return &RateLimiter{cfg: cfg, limiters: cache}
}

// Close stops the eviction loop.
func (rl *RateLimiter) Close() { rl.limiters.Stop() }

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	item, _ := rl.limiters.GetOrSet(key, rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst))
	return item.Value()
}

// Allow reports whether a request from key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Middleware enforces the limit, answering 429 with Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.Allow(ClientIP(r, rl.cfg.TrustProxy)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
		WriteAPIError(w, http.StatusTooManyRequests, APIError{
			Code:    codeRateLimited,
			Message: "too many sign-in attempts; try again shortly",
		})
	})
}

func (rl *RateLimiter) retryAfter() int {
	if rl.cfg.Rate <= 0 || rl.cfg.Rate == rate.Inf {
		return 1
	}
	return max(int(math.Ceil(1.0/float64(rl.cfg.Rate))), 1)
}
