package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Default session policy values applied when a tenant leaves them unset.
const (
	DefaultIdleTimeoutSeconds     int64 = 30 * 60
	DefaultAbsoluteTimeoutSeconds int64 = 8 * 60 * 60
	DefaultMaxFailedAttempts            = 5
)

// SessionPolicy controls session lifetime and login lockout for a tenant.
type SessionPolicy struct {
	IdleTimeoutSeconds     int64 `yaml:"idle_timeout_seconds"`
	AbsoluteTimeoutSeconds int64 `yaml:"absolute_timeout_seconds"`
	MaxFailedAttempts      int   `yaml:"max_failed_attempts"`
}

// WithDefaults fills zero values with package defaults.
func (p SessionPolicy) WithDefaults() SessionPolicy {
	if p.IdleTimeoutSeconds <= 0 {
		p.IdleTimeoutSeconds = DefaultIdleTimeoutSeconds
	}
	if p.AbsoluteTimeoutSeconds <= 0 {
		p.AbsoluteTimeoutSeconds = DefaultAbsoluteTimeoutSeconds
	}
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	return p
}

// Tenant is a customer organization identified by email domain.
// AdminEmails and AllowedEmails hold normalized addresses.
// An empty AllowedEmails set means every address in Domain is allowed.
type Tenant struct {
	ID            string
	Domain        string
	DisplayName   string
	AdminEmails   map[string]struct{}
	AllowedEmails map[string]struct{}
	SessionPolicy SessionPolicy
}

// NewTenant builds a Tenant from plain lists, normalizing addresses.
func NewTenant(id, domain string, admins, allowed []string, policy SessionPolicy) Tenant {
	return Tenant{
		ID:            strings.TrimSpace(id),
		Domain:        CanonicalDomain(domain),
		AdminEmails:   emailSet(admins),
		AllowedEmails: emailSet(allowed),
		SessionPolicy: policy.WithDefaults(),
	}
}

func emailSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, e := range in {
		if n := NormalizeEmail(e); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

// DomainWide reports whether every address in the tenant domain is allowed.
func (t Tenant) DomainWide() bool { return len(t.AllowedEmails) == 0 }

// IsAdmin reports whether email is listed in AdminEmails (case-insensitive).
func (t Tenant) IsAdmin(email string) bool {
	_, ok := t.AdminEmails[NormalizeEmail(email)]
	return ok
}

// Allows reports whether email may sign in to the tenant.
func (t Tenant) Allows(email string) bool {
	n := NormalizeEmail(email)
	if EmailDomain(n) != t.Domain {
		return false
	}
	if t.DomainWide() {
		return true
	}
	_, ok := t.AllowedEmails[n]
	return ok
}

// Validate checks the per-tenant invariants:
// admins must be allowed, and every listed address belongs to Domain.
func (t Tenant) Validate() error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("tenant id is required"))
	}
	if t.Domain == "" || strings.Contains(t.Domain, "@") {
		errs = append(errs, fmt.Errorf("tenant %q: invalid domain %q", t.ID, t.Domain))
	}
	for e := range t.AllowedEmails {
		if EmailDomain(e) != t.Domain {
			errs = append(errs, fmt.Errorf("tenant %q: allowed email %q is outside domain %q", t.ID, e, t.Domain))
		}
	}
	for e := range t.AdminEmails {
		if !t.Allows(e) {
			errs = append(errs, fmt.Errorf("tenant %q: admin %q is not an allowed email", t.ID, e))
		}
	}
	p := t.SessionPolicy
	if p.IdleTimeoutSeconds > p.AbsoluteTimeoutSeconds {
		errs = append(errs, fmt.Errorf("tenant %q: idle timeout exceeds absolute timeout", t.ID))
	}
	return errors.Join(errs...)
}
