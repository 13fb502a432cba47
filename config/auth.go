package config

import (
	"fmt"
	"strings"
	"time"
)

// ProviderKind names an identity provider that can be enabled.
type ProviderKind string

const (
	ProviderMicrosoft ProviderKind = "microsoft"
	ProviderAuth0     ProviderKind = "auth0"
	ProviderDemo      ProviderKind = "demo"
)

// UnmarshalText implements encoding.TextUnmarshaler for ProviderKind.
func (p *ProviderKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "microsoft", "auth0", "demo":
		*p = ProviderKind(v)
		return nil
	default:
		return fmt.Errorf("invalid provider: %q (valid options: microsoft, auth0, demo)", v)
	}
}

// ClaimsConfig overrides the JMESPath expressions used to read a profile.
type ClaimsConfig struct {
	Subject     string `env:"SUBJECT"`
	Email       string `env:"EMAIL"`
	DisplayName string `env:"DISPLAY_NAME"`
}

// MicrosoftConfig configures Microsoft Entra ID sign-in.
type MicrosoftConfig struct {
	TenantID     string       `env:"TENANT_ID"     envDefault:"common"`
	ClientID     string       `env:"CLIENT_ID"`
	ClientSecret string       `env:"CLIENT_SECRET"`
	RedirectURL  string       `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/microsoft/callback"`
	Scopes       []string     `env:"SCOPES"        envDefault:"openid,profile,email,User.Read" envSeparator:","`
	GraphURL     string       `env:"GRAPH_URL"     envDefault:"https://graph.microsoft.com"`
	Claims       ClaimsConfig `envPrefix:"CLAIM_"`
}

// OIDCConfig configures a generic OIDC provider (Auth0 by default).
type OIDCConfig struct {
	// Domain is the Auth0 tenant domain, e.g. "nextphase.us.auth0.com".
	Domain string `env:"DOMAIN"`
	// IssuerURL overrides the issuer derived from Domain.
	IssuerURL    string       `env:"ISSUER_URL"`
	ClientID     string       `env:"CLIENT_ID"`
	ClientSecret string       `env:"CLIENT_SECRET"`
	RedirectURL  string       `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/auth0/callback"`
	Scope        string       `env:"SCOPE"         envDefault:"openid profile email"`
	Audience     string       `env:"AUDIENCE"`
	Claims       ClaimsConfig `envPrefix:"CLAIM_"`
}

// Issuer returns IssuerURL, or the issuer of Domain.
func (c OIDCConfig) Issuer() string {
	if c.IssuerURL != "" {
		return c.IssuerURL
	}
	d := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(c.Domain), "https://"), "/")
	if d == "" {
		return ""
	}
	return "https://" + d + "/"
}

// DemoUser is one DEMO_USERS entry.
type DemoUser struct {
	Email        string
	PasswordHash string
}

// DemoUsers parses "email:bcrypt-hash,email:bcrypt-hash".
type DemoUsers []DemoUser

// UnmarshalText implements encoding.TextUnmarshaler for DemoUsers.
func (d *DemoUsers) UnmarshalText(text []byte) error {
	var out DemoUsers
	for _, entry := range strings.Split(string(text), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, hash, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(email) == "" || strings.TrimSpace(hash) == "" {
			return fmt.Errorf("invalid demo user entry %q (want email:bcrypt-hash)", entry)
		}
		out = append(out, DemoUser{Email: strings.TrimSpace(email), PasswordHash: strings.TrimSpace(hash)})
	}
	*d = out
	return nil
}

// DemoConfig configures the local demo credential provider.
type DemoConfig struct {
	Users   DemoUsers     `env:"USERS"`
	CodeTTL time.Duration `env:"CODE_TTL" envDefault:"2m"`
	// LockoutWindow is how long failed attempts are remembered.
	LockoutWindow time.Duration `env:"LOCKOUT_WINDOW" envDefault:"15m"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Providers lists the enabled identity providers.
	Providers []ProviderKind `env:"AUTH_PROVIDERS" envDefault:"microsoft" envSeparator:","`

	Microsoft MicrosoftConfig `envPrefix:"MICROSOFT_"`
	Auth0     OIDCConfig      `envPrefix:"AUTH0_"`
	Demo      DemoConfig      `envPrefix:"DEMO_"`

	// StateTTL bounds how long a login flow may take. Capped at 10 minutes.
	StateTTL time.Duration `env:"AUTH_STATE_TTL" envDefault:"10m"`
	// ExchangeTimeout bounds each provider round trip.
	ExchangeTimeout time.Duration `env:"AUTH_EXCHANGE_TIMEOUT" envDefault:"10s"`

	// RateLimit is login requests per second allowed per client IP; RateBurst its burst.
	RateLimit float64 `env:"AUTH_RATE_LIMIT" envDefault:"1"`
	RateBurst int     `env:"AUTH_RATE_BURST" envDefault:"10"`
}

// Sanitize applies guardrails to auth configuration values.
func (c *AuthConfig) Sanitize() {
	seen := make(map[ProviderKind]bool, len(c.Providers))
	providers := c.Providers[:0]
	for _, p := range c.Providers {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		providers = append(providers, p)
	}
	c.Providers = providers

	const maxStateTTL = 10 * time.Minute
	if c.StateTTL <= 0 || c.StateTTL > maxStateTTL {
		c.StateTTL = maxStateTTL
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = 10 * time.Second
	}
	if c.RateBurst < 1 {
		c.RateBurst = 1
	}
	if c.Demo.CodeTTL <= 0 {
		c.Demo.CodeTTL = 2 * time.Minute
	}
	if c.Demo.LockoutWindow <= 0 {
		c.Demo.LockoutWindow = 15 * time.Minute
	}
}

// Enabled reports whether provider p is listed in AUTH_PROVIDERS.
func (c *AuthConfig) Enabled(p ProviderKind) bool {
	for _, v := range c.Providers {
		if v == p {
			return true
		}
	}
	return false
}
