package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/nextphaseit/portal-gateway/config"
	"github.com/nextphaseit/portal-gateway/internal/adapters/memory"
	redisadapter "github.com/nextphaseit/portal-gateway/internal/adapters/redis"
	"github.com/nextphaseit/portal-gateway/internal/adapters/tenants"
	"github.com/nextphaseit/portal-gateway/internal/data"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	httpx "github.com/nextphaseit/portal-gateway/internal/http"
	"github.com/nextphaseit/portal-gateway/internal/observability/metrics"
	"github.com/nextphaseit/portal-gateway/internal/observability/statsd"
	"github.com/nextphaseit/portal-gateway/internal/ports"
	"github.com/nextphaseit/portal-gateway/internal/service"
)

// ServiceDeps contains dependencies for creating services.
type ServiceDeps struct {
	Config *config.AppConfig
	// DB is nil when the audit trail is disabled.
	DB *sql.DB
	// RedisClient is nil when the memory store is selected.
	RedisClient redis.UniversalClient
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// ServiceContainer holds the wired gateway services.
type ServiceContainer struct {
	Auth        *service.AuthService
	Sessions    *service.SessionManager
	Tenants     *service.TenantResolver
	Providers   *ProviderSet
	Health      *httpx.HealthHandler
	RateLimiter *httpx.RateLimiter

	closers []func()
}

// Close stops background loops owned by the container.
func (c *ServiceContainer) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// stores pairs the login-state and session stores of one backend.
type stores struct {
	states   ports.PKCEStore
	sessions ports.SessionStore
}

// NewServices wires the login pipeline. Invalid provider configuration is not
// an error here; it is reported through health and refused at login. A bad
// tenant registry or session configuration is fatal.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &ServiceContainer{}

	registry, err := tenants.Load(cfg.Tenants.Path)
	if err != nil {
		return nil, fmt.Errorf("load tenants: %w", err)
	}
	c.Tenants = service.NewTenantResolver(registry)
	metrics.EmitTenantsLoaded(deps.Metrics, len(registry.Tenants()))
	logger.InfoContext(ctx, "tenant registry loaded", "tenants", len(registry.Tenants()), "path", cfg.Tenants.Path)

	st, err := c.buildStores(cfg, deps.RedisClient)
	if err != nil {
		return nil, err
	}

	secret, err := signingSecret(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Sessions, err = service.NewSessionManager(service.SessionManagerOptions{
		Store:         st.sessions,
		SigningSecret: secret,
		Issuer:        cfg.Session.Issuer,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	attempts := memory.NewLoginAttempts(cfg.Auth.Demo.LockoutWindow)
	c.closers = append(c.closers, attempts.Close)

	c.Providers = BuildProviders(ProviderDeps{
		Auth:     cfg.Auth,
		Attempts: attempts,
		Limit:    c.Tenants.MaxFailedAttempts,
		Logger:   logger,
	})
	c.closers = append(c.closers, c.Providers.Close)

	var audit ports.AuditRecorder = service.NopAuditRecorder{}
	if deps.DB != nil {
		audit = data.NewAuthEventRepo(deps.DB)
	}

	c.Auth, err = service.NewAuthService(service.AuthServiceOptions{
		Providers:       c.Providers.Providers,
		ProviderErrors:  c.Providers.Errors,
		States:          st.states,
		StateTTL:        cfg.Auth.StateTTL,
		ExchangeTimeout: cfg.Auth.ExchangeTimeout,
		Tenants:         c.Tenants,
		Sessions:        c.Sessions,
		Audit:           audit,
		Metrics:         deps.Metrics,
		Logger:          logger,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	c.RateLimiter = httpx.NewRateLimiter(httpx.RateLimitConfig{
		Rate:       rate.Limit(cfg.Auth.RateLimit),
		Burst:      cfg.Auth.RateBurst,
		TrustProxy: cfg.HTTP.TrustProxy,
	})
	c.closers = append(c.closers, c.RateLimiter.Close)

	c.Health = &httpx.HealthHandler{
		ConfigErrors: c.Auth.ConfigurationErrors,
		Checks:       healthChecks(deps, c.Providers),
	}
	return c, nil
}

func (c *ServiceContainer) buildStores(cfg *config.AppConfig, client redis.UniversalClient) (stores, error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		if client == nil {
			return stores{}, domainauth.NewConfigurationError("session", "SESSION_STORE=redis requires a redis connection")
		}
		return stores{
			states:   redisadapter.NewPKCEStoreWithPrefix(client, cfg.Redis.PKCEPrefix()),
			sessions: redisadapter.NewSessionStoreWithPrefix(client, cfg.Redis.SessionPrefix()),
		}, nil
	default:
		states := memory.NewPKCEStore()
		sessions := memory.NewSessionStore()
		c.closers = append(c.closers, states.Close, sessions.Close)
		return stores{states: states, sessions: sessions}, nil
	}
}

// signingSecret returns SESSION_SIGNING_SECRET. In development an unset secret
// is replaced by a random one, which invalidates sessions on every restart.
func signingSecret(cfg *config.AppConfig, logger *slog.Logger) ([]byte, error) {
	if cfg.Session.SigningSecret != "" || !cfg.IsDev {
		return []byte(cfg.Session.SigningSecret), nil
	}
	secret := make([]byte, service.MinSigningSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	logger.Warn("SESSION_SIGNING_SECRET not set; using an ephemeral development secret")
	return secret, nil
}

func healthChecks(deps *ServiceDeps, providers *ProviderSet) []httpx.HealthCheck {
	var checks []httpx.HealthCheck
	if deps.RedisClient != nil {
		client := deps.RedisClient
		checks = append(checks, httpx.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}
	if deps.DB != nil {
		checks = append(checks, httpx.HealthCheck{Name: "postgres", Check: deps.DB.PingContext})
	}
	if providers != nil && providers.OIDC != nil {
		checks = append(checks, httpx.HealthCheck{Name: "auth0", Check: providers.OIDC.Ready})
	}
	return checks
}
