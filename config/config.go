package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity providers and login flow
//   - session.go: session signing, cookies and store selection
//   - database.go: Postgres audit trail and Redis
//   - http.go: HTTP server configuration
//   - observability.go: StatsD metrics
type AppConfig struct {
	// IsDev controls development mode behavior (insecure cookies over plain HTTP, text logs).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Auth    AuthConfig
	Session SessionConfig `envPrefix:"SESSION_"`
	Tenants TenantsConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.detectDevMode()
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	c.Auth.Sanitize()
	c.Session.Sanitize()
	c.Tenants.Path = strings.TrimSpace(c.Tenants.Path)
	c.Postgres.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// TenantsConfig locates the tenant registry.
type TenantsConfig struct {
	// Path to a YAML registry. Empty uses the built-in single-tenant registry.
	Path string `env:"TENANTS_FILE" envDefault:""`
}
