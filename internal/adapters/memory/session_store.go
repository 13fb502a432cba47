// Package memory provides single-node, in-process adapters backed by ttlcache.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// SessionStore keeps sessions in memory until Session.RetainUntil.
// Writes and deletes are serialized so an Update cannot revive a deleted record.
type SessionStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, domainauth.Session]
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a store and starts its expiry loop. Call Close to stop it.
func NewSessionStore() *SessionStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domainauth.Session](),
	)
	go cache.Start()
	return &SessionStore{cache: cache}
}

func (s *SessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := time.Until(sess.RetainUntil())
	if ttl <= 0 {
		return errors.New("session is past retention")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(sess.ID, sess, ttl)
	return nil
}

// Update replaces a live record and keeps its remaining TTL.
func (s *SessionStore) Update(_ context.Context, sess domainauth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(sess.ID)
	if item == nil {
		return ports.ErrNotFound
	}
	ttl := time.Until(item.ExpiresAt())
	if ttl <= 0 {
		return ports.ErrNotFound
	}
	s.cache.Set(sess.ID, sess, ttl)
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return domainauth.Session{}, ports.ErrNotFound
	}
	return item.Value(), nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
	return nil
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int { return s.cache.Len() }

// Close stops the expiry loop.
func (s *SessionStore) Close() { s.cache.Stop() }
