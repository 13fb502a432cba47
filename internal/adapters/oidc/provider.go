package oidc

// Package oidc implements sign-in against any OpenID Connect provider with
// discovery, such as Auth0.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/nextphaseit/portal-gateway/internal/adapters/claims"
	"github.com/nextphaseit/portal-gateway/internal/adapters/oauthflow"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// ProviderConfig holds configuration for an OIDC provider.
type ProviderConfig struct {
	Name         domainauth.ProviderName
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	// Audience is sent on the authorization request when set (Auth0 API audience).
	Audience   string
	Claims     claims.Mapping
	Timeout    time.Duration
	HTTPClient *http.Client
}

// discovered is the result of a successful discovery round trip.
type discovered struct {
	provider *gooidc.Provider
	verifier *gooidc.IDTokenVerifier
	config   *oauth2.Config
}

// Provider implements ports.IdentityProvider. Discovery runs on first use and
// concurrent first uses share one request. A failed discovery is retried on the next call.
type Provider struct {
	cfg        ProviderConfig
	scopes     []string
	issuer     string
	mapper     *claims.Mapper
	httpClient *http.Client

	group singleflight.Group
	mu    sync.RWMutex
	disc  *discovered
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider validates cfg without contacting the issuer.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = domainauth.ProviderAuth0
	}
	var problems []string
	if cfg.ClientID == "" {
		problems = append(problems, "client ID is required")
	}
	if cfg.ClientSecret == "" {
		problems = append(problems, "client secret is required")
	}
	if cfg.RedirectURL == "" {
		problems = append(problems, "redirect URL is required")
	}
	if cfg.IssuerURL == "" {
		problems = append(problems, "issuer URL is required")
	}
	if err := domainauth.NewConfigurationError(string(cfg.Name), problems...); err != nil {
		return nil, err
	}

	mapper, err := claims.NewMapper(cfg.Name, claims.OIDCMapping, cfg.Claims)
	if err != nil {
		return nil, err
	}

	scope := cfg.Scope
	if strings.TrimSpace(scope) == "" {
		scope = "openid profile email"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Provider{
		cfg:        cfg,
		scopes:     strings.Fields(scope),
		issuer:     issuerFromURL(cfg.IssuerURL),
		mapper:     mapper,
		httpClient: httpClient,
	}, nil
}

// issuerFromURL accepts either the issuer or its discovery document URL.
func issuerFromURL(raw string) string {
	issuer := strings.TrimSpace(raw)
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	// Auth0 issuers end with a slash; go-oidc compares the issuer exactly.
	return issuer
}

func (p *Provider) Name() domainauth.ProviderName { return p.cfg.Name }

func (p *Provider) discover(ctx context.Context) (*discovered, error) {
	p.mu.RLock()
	d := p.disc
	p.mu.RUnlock()
	if d != nil {
		return d, nil
	}

	v, err, _ := p.group.Do("discover", func() (any, error) {
		dctx, cancel := oauthflow.Context(context.WithoutCancel(ctx), p.httpClient, p.cfg.Timeout)
		defer cancel()

		op, err := gooidc.NewProvider(dctx, p.issuer)
		if err != nil {
			return nil, domainauth.NewConfigurationError(string(p.cfg.Name), fmt.Sprintf("discovery for %s failed: %v", p.issuer, err))
		}
		d := &discovered{
			provider: op,
			verifier: op.Verifier(&gooidc.Config{ClientID: p.cfg.ClientID}),
			config: &oauth2.Config{
				ClientID:     p.cfg.ClientID,
				ClientSecret: p.cfg.ClientSecret,
				RedirectURL:  p.cfg.RedirectURL,
				Scopes:       p.scopes,
				Endpoint:     op.Endpoint(),
			},
		}
		p.mu.Lock()
		p.disc = d
		p.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discovered), nil
}

func (p *Provider) AuthCodeURL(ctx context.Context, in ports.AuthorizeInput) (string, error) {
	d, err := p.discover(ctx)
	if err != nil {
		return "", err
	}
	var extra []oauth2.AuthCodeOption
	if p.cfg.Audience != "" {
		extra = append(extra, oauth2.SetAuthURLParam("audience", p.cfg.Audience))
	}
	return oauthflow.AuthCodeURL(d.config, in, extra...)
}

// Exchange redeems the code, verifies the ID token when openid was requested,
// then fills claims from UserInfo.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	d, err := p.discover(ctx)
	if err != nil {
		return domainauth.Identity{}, err
	}

	ctx, cancel := oauthflow.Context(ctx, p.httpClient, p.cfg.Timeout)
	defer cancel()

	tok, err := oauthflow.Exchange(ctx, d.config, in)
	if err != nil {
		return domainauth.Identity{}, err
	}

	doc := map[string]any{}
	if slices.Contains(p.scopes, "openid") {
		if err := p.verifyIDToken(ctx, d, tok, doc); err != nil {
			return domainauth.Identity{}, err
		}
	}
	if d.provider.UserInfoEndpoint() != "" {
		if err := fillFromUserInfo(ctx, d, tok, doc); err != nil {
			return domainauth.Identity{}, err
		}
	}
	return p.mapper.Identity(doc)
}

func (p *Provider) verifyIDToken(ctx context.Context, d *discovered, tok *oauth2.Token, into map[string]any) error {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return fmt.Errorf("%w: token response has no id_token", domainauth.ErrTokenExchangeFailed)
	}
	idTok, err := d.verifier.Verify(ctx, raw)
	if err != nil {
		return fmt.Errorf("%w: id_token rejected: %v", domainauth.ErrTokenExchangeFailed, err)
	}
	if err := idTok.Claims(&into); err != nil {
		return fmt.Errorf("%w: parse id_token claims: %v", domainauth.ErrTokenExchangeFailed, err)
	}
	return nil
}

// fillFromUserInfo adds UserInfo claims that the ID token did not carry.
// A UserInfo subject differing from the ID token subject is rejected.
func fillFromUserInfo(ctx context.Context, d *discovered, tok *oauth2.Token, into map[string]any) error {
	ui, err := d.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("%w: userinfo: %v", domainauth.ErrProfileFetchFailed, err)
	}
	var extra map[string]any
	if err := ui.Claims(&extra); err != nil {
		return fmt.Errorf("%w: decode userinfo: %v", domainauth.ErrProfileFetchFailed, err)
	}
	if sub, ok := into["sub"].(string); ok && sub != "" && ui.Subject != sub {
		return fmt.Errorf("%w: userinfo subject mismatch", domainauth.ErrProfileFetchFailed)
	}
	for k, v := range extra {
		if _, exists := into[k]; !exists {
			into[k] = v
		}
	}
	return nil
}

// Ready reports whether discovery has succeeded, running it if needed.
func (p *Provider) Ready(ctx context.Context) error {
	_, err := p.discover(ctx)
	if err != nil && !errors.Is(err, domainauth.ErrConfiguration) {
		return domainauth.NewConfigurationError(string(p.cfg.Name), err.Error())
	}
	return err
}
