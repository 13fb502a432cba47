package auth

// Package auth contains domain-level types for authentication, tenants and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and tokens.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleNone  Role = "none"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleNone:
		return true
	default:
		return false
	}
}

// ProviderName identifies an identity provider implementation.
type ProviderName string

const (
	ProviderMicrosoft ProviderName = "microsoft"
	ProviderAuth0     ProviderName = "auth0"
	ProviderDemo      ProviderName = "demo"
)

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific profile fields into this shape.
type Identity struct {
	SubjectID   string // provider-issued subject id
	Email       string // normalized: trimmed and lower-cased
	DisplayName string
	Provider    ProviderName
}

// NormalizeEmail trims and lower-cases an email address and canonicalizes
// its domain with CanonicalDomain.
func NormalizeEmail(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	i := strings.LastIndex(e, "@")
	if i < 0 || i == len(e)-1 {
		return e
	}
	return e[:i+1] + CanonicalDomain(e[i+1:])
}

// EmailDomain returns the canonical domain after the last "@".
// It returns "" when the address has no "@" or nothing after it.
func EmailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return CanonicalDomain(email[i+1:])
}

// CanonicalDomain lower-cases d and converts it to its IDNA ASCII form so
// "bücher.example" and "xn--bcher-kva.example" compare equal.
// Names idna rejects are only lower-cased.
func CanonicalDomain(d string) string {
	d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
	if d == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(d)
	if err != nil {
		return d
	}
	return ascii
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier.
type Session struct {
	ID                     string       `json:"id"`
	SubjectID              string       `json:"subject_id"`
	Email                  string       `json:"email"`
	DisplayName            string       `json:"display_name"`
	Provider               ProviderName `json:"provider"`
	TenantID               string       `json:"tenant_id"`
	Role                   Role         `json:"role"`
	IssuedAt               time.Time    `json:"issued_at"`
	LastActivityAt         time.Time    `json:"last_activity_at"`
	ExpiresAt              time.Time    `json:"expires_at"`
	IdleTimeoutSeconds     int64        `json:"idle_timeout_seconds"`
	AbsoluteTimeoutSeconds int64        `json:"absolute_timeout_seconds"`
}

// IsAdmin returns true if the session role is admin.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// Identity returns the identity folded into the session.
func (s Session) Identity() Identity {
	return Identity{
		SubjectID:   s.SubjectID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		Provider:    s.Provider,
	}
}

// AbsoluteDeadline is the hard ceiling IssuedAt + AbsoluteTimeout.
func (s Session) AbsoluteDeadline() time.Time {
	return s.IssuedAt.Add(time.Duration(s.AbsoluteTimeoutSeconds) * time.Second)
}

// IdleDeadline is LastActivityAt + IdleTimeout.
func (s Session) IdleDeadline() time.Time {
	return s.LastActivityAt.Add(time.Duration(s.IdleTimeoutSeconds) * time.Second)
}

// ComputeExpiry returns min(AbsoluteDeadline, IdleDeadline).
func (s Session) ComputeExpiry() time.Time {
	abs, idle := s.AbsoluteDeadline(), s.IdleDeadline()
	if idle.Before(abs) {
		return idle
	}
	return abs
}

// RecordGrace is how long stores keep a record past its last possible deadline,
// so a late request still reads the session as expired rather than unknown.
const RecordGrace = time.Minute

// RetainUntil is when a store may drop the record: the later of ExpiresAt and
// AbsoluteDeadline, plus RecordGrace. The idle deadline slides, so stores must
// not use it; the Session Manager decides expiry.
func (s Session) RetainUntil() time.Time {
	last := s.ExpiresAt
	if abs := s.AbsoluteDeadline(); abs.After(last) {
		last = abs
	}
	return last.Add(RecordGrace)
}

// Expired reports whether now is past ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// PKCEState is the short-lived, single-use record created when a login flow begins.
type PKCEState struct {
	State        string       `json:"state"`
	CodeVerifier string       `json:"code_verifier"`
	Provider     ProviderName `json:"provider"`
	ReturnTo     string       `json:"return_to"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Expired reports whether the state is older than ttl at now.
func (p PKCEState) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}
