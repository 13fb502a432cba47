// Package redis provides Redis-backed session and login-state stores shared by gateway replicas.
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

// DefaultSessionPrefix namespaces session keys.
const DefaultSessionPrefix = "gateway:session:"

// SessionStore stores sessions as JSON with a TTL ending at Session.RetainUntil.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a store using DefaultSessionPrefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, DefaultSessionPrefix)
}

// NewSessionStoreWithPrefix creates a store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

var (
	errEmptySessionID = errors.New("session id is empty")
	errSessionExpired = errors.New("session is past retention")
)

func (s *SessionStore) key(id string) string { return s.prefix + id }

// Save writes the session with a TTL ending at its RetainUntil.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errEmptySessionID
	}
	ttl := time.Until(sess.RetainUntil())
	if ttl <= 0 {
		return errSessionExpired
	}
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	return s.client.Set(ctx, s.key(sess.ID), blob, ttl).Err()
}

// Update rewrites an existing key with SET XX KEEPTTL. A missing key, for
// example one deleted by a concurrent logout, yields ports.ErrNotFound.
func (s *SessionStore) Update(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errEmptySessionID
	}
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	err = s.client.SetArgs(ctx, s.key(sess.ID), blob, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return ports.ErrNotFound
	}
	return err
}

// Get returns ports.ErrNotFound for unknown or expired ids.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	var sess domainauth.Session
	if id == "" {
		return sess, ports.ErrNotFound
	}
	blob, err := s.client.Get(ctx, s.key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return sess, ports.ErrNotFound
	case err != nil:
		return sess, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal(blob, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Delete is a no-op for unknown ids.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(id)).Err()
}
