package ports

// Package ports defines interfaces (hexagonal ports) for gateway behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

// ErrNotFound is returned by stores when a key does not exist or has expired.
var ErrNotFound = errors.New("not found")

// AuthorizeInput carries the values placed on the provider authorization URL.
type AuthorizeInput struct {
	State         string
	CodeChallenge string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code         string
	CodeVerifier string
}

// IdentityProvider starts and completes an authorization-code flow with PKCE.
type IdentityProvider interface {
	Name() domainauth.ProviderName

	// AuthCodeURL returns the provider authorization URL for the given state and S256 challenge.
	AuthCodeURL(ctx context.Context, in AuthorizeInput) (string, error)

	// Exchange redeems the code with the verifier and returns the normalized identity.
	// Failures are reported as domainauth.ErrTokenExchangeFailed or ErrProfileFetchFailed.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// PKCEStore holds single-use login state keyed by the state value.
type PKCEStore interface {
	Save(ctx context.Context, st domainauth.PKCEState, ttl time.Duration) error

	// Consume atomically fetches and deletes the state. Two concurrent calls
	// for the same key never both succeed. Missing keys return ErrNotFound.
	Consume(ctx context.Context, state string) (domainauth.PKCEState, error)
}

// SessionStore persists and retrieves user sessions.
// Records are kept until Session.RetainUntil; expiry is decided by the caller.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	// Update overwrites an existing record without changing its retention.
	// It returns ErrNotFound when the record is gone, so a deleted session
	// is never written back.
	Update(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// TenantRegistry is the read-only set of configured tenants.
type TenantRegistry interface {
	// Lookup finds the tenant for an exact (normalized) domain.
	Lookup(domain string) (domainauth.Tenant, bool)
	Tenants() []domainauth.Tenant
}

// AuditRecorder records authentication events.
type AuditRecorder interface {
	Record(ctx context.Context, ev domainauth.Event) error
}

// LoginAttempts tracks failed credential checks per key for lockout.
type LoginAttempts interface {
	// Check returns domainauth.ErrTooManyAttempts when key has reached limit failures.
	Check(key string, limit int) error
	Fail(key string)
	Reset(key string)
}
