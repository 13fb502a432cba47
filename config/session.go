package config

import (
	"fmt"
	"strings"
)

// StoreKind selects where sessions and login states live.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreRedis  StoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreKind.
func (s *StoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*s = StoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreKind: %q (valid options: memory, redis)", v)
	}
}

// SessionConfig controls session tokens, cookies and storage.
type SessionConfig struct {
	// SigningSecret signs session tokens (HS256). At least 32 bytes.
	SigningSecret string    `env:"SIGNING_SECRET"`
	Issuer        string    `env:"ISSUER"         envDefault:"portal-gateway"`
	CookieName    string    `env:"COOKIE_NAME"    envDefault:"portal_session"`
	CookieDomain  string    `env:"COOKIE_DOMAIN"  envDefault:""`
	Store         StoreKind `env:"STORE"          envDefault:"memory"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	c.CookieName = strings.TrimSpace(c.CookieName)
	if c.CookieName == "" {
		c.CookieName = "portal_session"
	}
	c.CookieDomain = strings.TrimSpace(c.CookieDomain)
	if c.Store == "" {
		c.Store = StoreMemory
	}
}
