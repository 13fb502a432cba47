package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// DefaultPKCEPrefix namespaces login state keys.
const DefaultPKCEPrefix = "gateway:pkce:"

// PKCEStore keeps pending login states. Consume uses GETDEL so that only
// one replica can redeem a given state.
type PKCEStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.PKCEStore = (*PKCEStore)(nil)

// NewPKCEStore creates a store using DefaultPKCEPrefix.
func NewPKCEStore(client redis.UniversalClient) *PKCEStore {
	return NewPKCEStoreWithPrefix(client, DefaultPKCEPrefix)
}

// NewPKCEStoreWithPrefix creates a store with a custom key prefix.
func NewPKCEStoreWithPrefix(client redis.UniversalClient, prefix string) *PKCEStore {
	return &PKCEStore{client: client, prefix: prefix}
}

func (s *PKCEStore) Save(ctx context.Context, st domainauth.PKCEState, ttl time.Duration) error {
	if st.State == "" {
		return errors.New("state cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("state ttl must be positive")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal pkce state: %w", err)
	}
	// NX: a colliding state must never overwrite a pending login.
	ok, err := s.client.SetNX(ctx, s.prefix+st.State, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return errors.New("state already exists")
	}
	return nil
}

func (s *PKCEStore) Consume(ctx context.Context, state string) (domainauth.PKCEState, error) {
	if state == "" {
		return domainauth.PKCEState{}, ports.ErrNotFound
	}
	data, err := s.client.GetDel(ctx, s.prefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.PKCEState{}, ports.ErrNotFound
		}
		return domainauth.PKCEState{}, fmt.Errorf("redis getdel: %w", err)
	}
	var st domainauth.PKCEState
	if err := json.Unmarshal(data, &st); err != nil {
		return domainauth.PKCEState{}, fmt.Errorf("unmarshal pkce state: %w", err)
	}
	return st, nil
}
