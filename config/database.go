package config

import "strings"

// DBConfig locates the Postgres database holding the login audit trail.
// The gateway runs without it; audit events are then discarded.
type DBConfig struct {
	Enabled  bool   `env:"ENABLED"   envDefault:"false"`
	Host     string `env:"HOST"      envDefault:"localhost"`
	Port     int    `env:"PORT"      envDefault:"5432"`
	User     string `env:"USER"      envDefault:"gateway"`
	Password string `env:"PASSWORD"  envDefault:"gateway"`
	Name     string `env:"NAME"      envDefault:"gateway"`
	SSLMode  string `env:"SSL_MODE"  envDefault:"disable"`
	// MaxOpenConns caps the pool. Audit writes are one insert per login.
	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"10"`
	// RunMigrationsOnStart applies the embedded schema during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize applies guardrails to database configuration values.
func (c *DBConfig) Sanitize() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.SSLMode = strings.TrimSpace(c.SSLMode); c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// RedisConfig selects the Redis deployment backing SESSION_STORE=redis.
// Cluster wins over sentinel; otherwise URI is a host:port or redis:// URL.
type RedisConfig struct {
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`

	UseCluster   bool     `env:"USE_CLUSTER"   envDefault:"false"`
	ClusterNodes []string `env:"CLUSTER_NODES" envDefault:""`

	// KeyPrefix namespaces every gateway key so one Redis can serve several deployments.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"gateway:"`
}

// SessionPrefix is the key prefix for session records.
func (c RedisConfig) SessionPrefix() string { return c.KeyPrefix + "session:" }

// PKCEPrefix is the key prefix for pending login states.
func (c RedisConfig) PKCEPrefix() string { return c.KeyPrefix + "pkce:" }
