package bootstrap

import (
	"errors"
	"log/slog"

	"github.com/nextphaseit/portal-gateway/config"
	"github.com/nextphaseit/portal-gateway/internal/adapters/claims"
	"github.com/nextphaseit/portal-gateway/internal/adapters/demoauth"
	"github.com/nextphaseit/portal-gateway/internal/adapters/microsoft"
	"github.com/nextphaseit/portal-gateway/internal/adapters/oidc"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// ProviderDeps contains what provider construction needs beyond config.
type ProviderDeps struct {
	Auth config.AuthConfig
	// Attempts and Limit drive demo account lockout.
	Attempts ports.LoginAttempts
	Limit    func(email string) int
	Logger   *slog.Logger
}

// ProviderSet is the result of BuildProviders, in AUTH_PROVIDERS order.
// A provider whose configuration is invalid appears in Errors, never in Providers,
// so logins through it fail closed while the rest of the gateway keeps serving.
type ProviderSet struct {
	Providers []ports.IdentityProvider
	Errors    map[domainauth.ProviderName]error

	// Demo is nil unless the demo provider is enabled and valid.
	Demo *demoauth.Provider
	// OIDC is kept for readiness checks.
	OIDC *oidc.Provider
}

// Close releases background resources held by providers.
func (s *ProviderSet) Close() {
	if s.Demo != nil {
		s.Demo.Close()
	}
}

// BuildProviders constructs every enabled provider.
func BuildProviders(deps ProviderDeps) *ProviderSet {
	set := &ProviderSet{Errors: make(map[domainauth.ProviderName]error)}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Auth

	add := func(name domainauth.ProviderName, p ports.IdentityProvider, err error) {
		if err != nil {
			logger.Error("identity provider misconfigured; logins through it are refused",
				"provider", name, "error", err)
			set.Errors[name] = err
			return
		}
		set.Providers = append(set.Providers, p)
	}

	for _, kind := range cfg.Providers {
		switch kind {
		case config.ProviderMicrosoft:
			p, err := microsoft.NewProvider(microsoft.ProviderConfig{
				TenantID:     cfg.Microsoft.TenantID,
				ClientID:     cfg.Microsoft.ClientID,
				ClientSecret: cfg.Microsoft.ClientSecret,
				RedirectURL:  cfg.Microsoft.RedirectURL,
				Scopes:       cfg.Microsoft.Scopes,
				GraphURL:     cfg.Microsoft.GraphURL,
				Claims:       claimsMapping(cfg.Microsoft.Claims),
				Timeout:      cfg.ExchangeTimeout,
			})
			add(domainauth.ProviderMicrosoft, p, err)

		case config.ProviderAuth0:
			p, err := oidc.NewProvider(oidc.ProviderConfig{
				Name:         domainauth.ProviderAuth0,
				IssuerURL:    cfg.Auth0.Issuer(),
				ClientID:     cfg.Auth0.ClientID,
				ClientSecret: cfg.Auth0.ClientSecret,
				RedirectURL:  cfg.Auth0.RedirectURL,
				Scope:        cfg.Auth0.Scope,
				Audience:     cfg.Auth0.Audience,
				Claims:       claimsMapping(cfg.Auth0.Claims),
				Timeout:      cfg.ExchangeTimeout,
			})
			if err == nil {
				set.OIDC = p
			}
			add(domainauth.ProviderAuth0, p, err)

		case config.ProviderDemo:
			p, err := demoauth.NewProvider(demoauth.ProviderConfig{
				Users:    demoUsers(cfg.Demo.Users),
				CodeTTL:  cfg.Demo.CodeTTL,
				Attempts: deps.Attempts,
				Limit:    deps.Limit,
			})
			if err == nil {
				set.Demo = p
				logger.Warn("demo identity provider enabled; do not use in production",
					"users", len(cfg.Demo.Users))
			}
			add(domainauth.ProviderDemo, p, err)
		}
	}

	if len(set.Providers) == 0 && len(set.Errors) == 0 {
		set.Errors[domainauth.ProviderName("none")] = domainauth.NewConfigurationError("auth", "no identity providers enabled")
	}
	return set
}

// ConfigurationErrors flattens Errors for logging.
func (s *ProviderSet) ConfigurationErrors() error {
	errs := make([]error, 0, len(s.Errors))
	for _, err := range s.Errors {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func claimsMapping(c config.ClaimsConfig) claims.Mapping {
	return claims.Mapping{
		Subject:     c.Subject,
		Email:       c.Email,
		DisplayName: c.DisplayName,
	}
}

func demoUsers(users config.DemoUsers) []demoauth.User {
	out := make([]demoauth.User, 0, len(users))
	for _, u := range users {
		out = append(out, demoauth.User{Email: u.Email, PasswordHash: u.PasswordHash})
	}
	return out
}
