package microsoft

// Package microsoft implements sign-in with the Microsoft identity platform
// (Entra ID) and reads the profile from Microsoft Graph.

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/nextphaseit/portal-gateway/internal/adapters/claims"
	"github.com/nextphaseit/portal-gateway/internal/adapters/oauthflow"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// DefaultGraphURL is the Microsoft Graph base URL.
const DefaultGraphURL = "https://graph.microsoft.com"

// DefaultScopes request an ID token, the user's email and Graph profile access.
var DefaultScopes = []string{"openid", "profile", "email", "User.Read"}

// ProviderConfig holds configuration for the Microsoft provider.
// ClientSecret may be empty for public-client registrations; PKCE protects the exchange.
type ProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	GraphURL     string
	Claims       claims.Mapping
	Timeout      time.Duration
	HTTPClient   *http.Client

	// Endpoint overrides the Entra endpoint derived from TenantID.
	Endpoint *oauth2.Endpoint
}

// Provider implements ports.IdentityProvider for Microsoft accounts.
type Provider struct {
	config     *oauth2.Config
	graphURL   string
	mapper     *claims.Mapper
	timeout    time.Duration
	httpClient *http.Client
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider validates cfg. Missing values are reported as a ConfigurationError.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	var problems []string
	if cfg.ClientID == "" {
		problems = append(problems, "client ID is required")
	}
	if cfg.RedirectURL == "" {
		problems = append(problems, "redirect URL is required")
	}
	if err := domainauth.NewConfigurationError("microsoft", problems...); err != nil {
		return nil, err
	}

	mapper, err := claims.NewMapper(domainauth.ProviderMicrosoft, claims.GraphMapping, cfg.Claims)
	if err != nil {
		return nil, err
	}

	tenant := strings.TrimSpace(cfg.TenantID)
	if tenant == "" {
		tenant = "common"
	}
	endpoint := microsoft.AzureADEndpoint(tenant)
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	graphURL := strings.TrimSuffix(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		graphURL:   graphURL,
		mapper:     mapper,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
	}, nil
}

func (p *Provider) Name() domainauth.ProviderName { return domainauth.ProviderMicrosoft }

func (p *Provider) AuthCodeURL(_ context.Context, in ports.AuthorizeInput) (string, error) {
	return oauthflow.AuthCodeURL(p.config, in, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange redeems the code, then reads /v1.0/me from Graph.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	ctx, cancel := oauthflow.Context(ctx, p.httpClient, p.timeout)
	defer cancel()

	tok, err := oauthflow.Exchange(ctx, p.config, in)
	if err != nil {
		return domainauth.Identity{}, err
	}
	doc, err := oauthflow.FetchJSON(ctx, p.httpClient, p.graphURL+"/v1.0/me", tok)
	if err != nil {
		return domainauth.Identity{}, err
	}
	return p.mapper.Identity(doc)
}
