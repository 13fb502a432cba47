package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, []ProviderKind{ProviderMicrosoft}, cfg.Auth.Providers)
	assert.Equal(t, "common", cfg.Auth.Microsoft.TenantID)
	assert.Equal(t, []string{"openid", "profile", "email", "User.Read"}, cfg.Auth.Microsoft.Scopes)
	assert.Equal(t, 10*time.Minute, cfg.Auth.StateTTL)
	assert.Equal(t, 10*time.Second, cfg.Auth.ExchangeTimeout)
	assert.Equal(t, "portal_session", cfg.Session.CookieName)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Observability.Metrics.IsEnabled())
}

func TestAppConfig_InfrastructureEnv(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "-3")
	t.Setenv("DB_SSL_MODE", " ")
	t.Setenv("REDIS_KEY_PREFIX", "staging:")
	t.Setenv("OBSERVABILITY_METRICS_TAGS", "env:staging,region:us-east")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, 10, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, "staging:session:", cfg.Redis.SessionPrefix())
	assert.Equal(t, "staging:pkce:", cfg.Redis.PKCEPrefix())
	assert.Equal(t, map[string]string{"env": "staging", "region": "us-east"}, cfg.Observability.Metrics.Tags)
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_PROVIDERS", "microsoft, auth0,demo,auth0")
	t.Setenv("MICROSOFT_TENANT_ID", "contoso.onmicrosoft.com")
	t.Setenv("MICROSOFT_CLIENT_ID", "ms-client")
	t.Setenv("MICROSOFT_CLAIM_EMAIL", "mail")
	t.Setenv("AUTH0_DOMAIN", "nextphase.us.auth0.com")
	t.Setenv("AUTH0_CLIENT_ID", "a0-client")
	t.Setenv("AUTH0_CLIENT_SECRET", "a0-secret")
	t.Setenv("AUTH0_AUDIENCE", "https://api.nextphaseit.org")
	t.Setenv("DEMO_USERS", "staff@nextphaseit.org:$2a$10$abcdefghijklmnopqrstuv, admin@nextphaseit.org:$2a$10$zyxwvutsrqponmlkjihgfe")
	t.Setenv("AUTH_STATE_TTL", "30m")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, []ProviderKind{ProviderMicrosoft, ProviderAuth0, ProviderDemo}, cfg.Auth.Providers)
	assert.True(t, cfg.Auth.Enabled(ProviderDemo))
	assert.Equal(t, "contoso.onmicrosoft.com", cfg.Auth.Microsoft.TenantID)
	assert.Equal(t, "mail", cfg.Auth.Microsoft.Claims.Email)
	assert.Equal(t, "https://nextphase.us.auth0.com/", cfg.Auth.Auth0.Issuer())
	assert.Equal(t, "https://api.nextphaseit.org", cfg.Auth.Auth0.Audience)
	assert.Equal(t, 10*time.Minute, cfg.Auth.StateTTL, "state TTL is capped")

	require.Len(t, cfg.Auth.Demo.Users, 2)
	assert.Equal(t, DemoUser{Email: "staff@nextphaseit.org", PasswordHash: "$2a$10$abcdefghijklmnopqrstuv"}, cfg.Auth.Demo.Users[0])
}

func TestAppConfig_InvalidValues(t *testing.T) {
	t.Setenv("AUTH_PROVIDERS", "microsoft,github")
	var cfg AppConfig
	require.Error(t, env.Parse(&cfg))

	t.Setenv("AUTH_PROVIDERS", "demo")
	t.Setenv("DEMO_USERS", "no-hash-here")
	require.Error(t, env.Parse(&cfg))

	t.Setenv("DEMO_USERS", "")
	t.Setenv("SESSION_STORE", "etcd")
	require.Error(t, env.Parse(&cfg))
}

func TestOIDCConfig_Issuer(t *testing.T) {
	assert.Empty(t, OIDCConfig{}.Issuer())
	assert.Equal(t, "https://tenant.auth0.com/", OIDCConfig{Domain: "https://tenant.auth0.com/"}.Issuer())
	assert.Equal(t, "https://idp.test/realms/x", OIDCConfig{Domain: "ignored", IssuerURL: "https://idp.test/realms/x"}.Issuer())
}

func TestSanitize_Guardrails(t *testing.T) {
	cfg := AppConfig{}
	cfg.Observability.Metrics = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "  "}
	cfg.Auth.RateBurst = -1
	cfg.Sanitize()

	assert.False(t, cfg.Observability.Metrics.IsEnabled())
	assert.Equal(t, "portal_gateway", cfg.Observability.Metrics.Prefix)
	assert.Equal(t, 1, cfg.Auth.RateBurst)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	assert.True(t, cfg.IsDev)
}
