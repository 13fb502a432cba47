package demoauth

// Package demoauth is a local credential provider for demonstrations.
// It behaves like a miniature authorization server: the authorization URL is
// a local form, a correct password yields a one-time code bound to the PKCE
// challenge, and Exchange redeems the code with the verifier.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// Paths served by the HTTP layer for this provider.
const (
	AuthorizePath = "/auth/demo/authorize"
	CallbackPath  = "/auth/demo/callback"
)

// DefaultCodeTTL is how long an issued code stays redeemable.
const DefaultCodeTTL = 2 * time.Minute

// dummyHash keeps unknown-user checks as slow as known-user checks.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("demo-timing-equalizer"), bcrypt.MinCost)

// User is a demo account. PasswordHash is a bcrypt hash.
type User struct {
	Email        string
	DisplayName  string
	PasswordHash string
}

// ProviderConfig holds configuration for the demo provider.
type ProviderConfig struct {
	Users   []User
	CodeTTL time.Duration
	// Attempts enables lockout when set; Limit returns the failure threshold for an email.
	Attempts ports.LoginAttempts
	Limit    func(email string) int
}

type grant struct {
	identity  domainauth.Identity
	challenge string
}

// Provider implements ports.IdentityProvider for demo accounts.
type Provider struct {
	users    map[string]User
	attempts ports.LoginAttempts
	limit    func(string) int
	codes    *ttlcache.Cache[string, grant]
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider validates the configured users.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	var problems []string
	if len(cfg.Users) == 0 {
		problems = append(problems, "at least one demo user is required")
	}
	users := make(map[string]User, len(cfg.Users))
	for _, u := range cfg.Users {
		email := domainauth.NormalizeEmail(u.Email)
		if domainauth.EmailDomain(email) == "" {
			problems = append(problems, fmt.Sprintf("demo user %q has no valid email", u.Email))
			continue
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			problems = append(problems, fmt.Sprintf("demo user %q: password hash is not bcrypt", email))
			continue
		}
		u.Email = email
		if u.DisplayName == "" {
			u.DisplayName = email[:strings.LastIndex(email, "@")]
		}
		users[email] = u
	}
	if err := domainauth.NewConfigurationError("demo", problems...); err != nil {
		return nil, err
	}

	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	limit := cfg.Limit
	if limit == nil {
		limit = func(string) int { return domainauth.DefaultMaxFailedAttempts }
	}
	codes := ttlcache.New(
		ttlcache.WithTTL[string, grant](ttl),
		ttlcache.WithDisableTouchOnHit[string, grant](),
	)
	go codes.Start()

	return &Provider{
		users:    users,
		attempts: cfg.Attempts,
		limit:    limit,
		codes:    codes,
	}, nil
}

// Close stops the code cache expiry loop.
func (p *Provider) Close() { p.codes.Stop() }

func (p *Provider) Name() domainauth.ProviderName { return domainauth.ProviderDemo }

// AuthCodeURL returns the local form URL carrying state and challenge.
func (p *Provider) AuthCodeURL(_ context.Context, in ports.AuthorizeInput) (string, error) {
	if in.State == "" || in.CodeChallenge == "" {
		return "", fmt.Errorf("state and code challenge are required")
	}
	q := url.Values{}
	q.Set("state", in.State)
	q.Set("code_challenge", in.CodeChallenge)
	q.Set("code_challenge_method", "S256")
	return AuthorizePath + "?" + q.Encode(), nil
}

// Authorize checks credentials and returns the callback URL with a one-time code.
// It returns ErrTooManyAttempts while the email is locked out and
// ErrInvalidCredentials for a wrong email or password.
func (p *Provider) Authorize(_ context.Context, email, password, state, challenge string) (string, error) {
	if state == "" || challenge == "" {
		return "", domainauth.ErrInvalidState
	}
	email = domainauth.NormalizeEmail(email)
	if p.attempts != nil {
		if err := p.attempts.Check(email, p.limit(email)); err != nil {
			return "", err
		}
	}

	user, known := p.users[email]
	hash := dummyHash
	if known {
		hash = []byte(user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !known {
		if p.attempts != nil {
			p.attempts.Fail(email)
		}
		return "", domainauth.ErrInvalidCredentials
	}
	if p.attempts != nil {
		p.attempts.Reset(email)
	}

	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	p.codes.Set(code, grant{
		identity: domainauth.Identity{
			SubjectID:   "demo|" + email,
			Email:       email,
			DisplayName: user.DisplayName,
			Provider:    domainauth.ProviderDemo,
		},
		challenge: challenge,
	}, ttlcache.DefaultTTL)

	q := url.Values{}
	q.Set("code", code)
	q.Set("state", state)
	return CallbackPath + "?" + q.Encode(), nil
}

// Exchange redeems a code once. The verifier must hash to the bound challenge.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	item, ok := p.codes.GetAndDelete(in.Code)
	if !ok || item == nil {
		return domainauth.Identity{}, fmt.Errorf("%w: unknown or used code", domainauth.ErrTokenExchangeFailed)
	}
	g := item.Value()
	if subtle.ConstantTimeCompare([]byte(oauth2.S256ChallengeFromVerifier(in.CodeVerifier)), []byte(g.challenge)) != 1 {
		return domainauth.Identity{}, fmt.Errorf("%w: code verifier does not match challenge", domainauth.ErrTokenExchangeFailed)
	}
	return g.identity, nil
}

// HashPassword returns a bcrypt hash suitable for User.PasswordHash.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func randomCode() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
