package memory

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// PKCEStore holds pending login states in memory.
// Consume uses GetAndDelete, which runs under the cache lock.
type PKCEStore struct {
	cache *ttlcache.Cache[string, domainauth.PKCEState]
}

var _ ports.PKCEStore = (*PKCEStore)(nil)

// NewPKCEStore creates a store and starts its expiry loop.
func NewPKCEStore() *PKCEStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domainauth.PKCEState](),
	)
	go cache.Start()
	return &PKCEStore{cache: cache}
}

func (s *PKCEStore) Save(_ context.Context, st domainauth.PKCEState, ttl time.Duration) error {
	if st.State == "" {
		return errors.New("state cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("state ttl must be positive")
	}
	s.cache.Set(st.State, st, ttl)
	return nil
}

func (s *PKCEStore) Consume(_ context.Context, state string) (domainauth.PKCEState, error) {
	if state == "" {
		return domainauth.PKCEState{}, ports.ErrNotFound
	}
	item, ok := s.cache.GetAndDelete(state)
	if !ok || item == nil {
		return domainauth.PKCEState{}, ports.ErrNotFound
	}
	return item.Value(), nil
}

// Close stops the expiry loop.
func (s *PKCEStore) Close() { s.cache.Stop() }
