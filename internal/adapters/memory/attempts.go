package memory

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// DefaultLockoutWindow is how long failures are remembered after the latest one.
const DefaultLockoutWindow = 15 * time.Minute

// LoginAttempts counts failed credential checks per key in a sliding window.
type LoginAttempts struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, int]
}

var _ ports.LoginAttempts = (*LoginAttempts)(nil)

// NewLoginAttempts creates a counter whose entries expire window after the last failure.
func NewLoginAttempts(window time.Duration) *LoginAttempts {
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, int](window),
		ttlcache.WithDisableTouchOnHit[string, int](),
	)
	go cache.Start()
	return &LoginAttempts{cache: cache}
}

func (a *LoginAttempts) Check(key string, limit int) error {
	if limit <= 0 {
		return nil
	}
	if item := a.cache.Get(domainauth.NormalizeEmail(key)); item != nil && item.Value() >= limit {
		return domainauth.ErrTooManyAttempts
	}
	return nil
}

func (a *LoginAttempts) Fail(key string) {
	key = domainauth.NormalizeEmail(key)
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	if item := a.cache.Get(key); item != nil {
		n = item.Value()
	}
	a.cache.Set(key, n+1, ttlcache.DefaultTTL)
}

func (a *LoginAttempts) Reset(key string) {
	a.cache.Delete(domainauth.NormalizeEmail(key))
}

// Close stops the expiry loop.
func (a *LoginAttempts) Close() { a.cache.Stop() }
