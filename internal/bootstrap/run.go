package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nextphaseit/portal-gateway/config"
	"github.com/nextphaseit/portal-gateway/internal/observability/statsd"
)

// Infrastructure holds the external connections the gateway was configured with.
type Infrastructure struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Metrics     *statsd.Client
}

// Close releases every open connection.
func (i *Infrastructure) Close() error {
	var errs []error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if i.RedisClient != nil {
		if err := i.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := i.Metrics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close statsd: %w", err))
	}
	return errors.Join(errs...)
}

// ConnectInfrastructure opens only what cfg enables: Postgres for the audit
// trail, Redis for the shared store and a StatsD socket for metrics.
func ConnectInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{}
	fail := func(err error) (*Infrastructure, error) {
		if cerr := infra.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}

	m := cfg.Observability.Metrics
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    m.IsEnabled(),
		Address:    m.StatsdAddress,
		Prefix:     m.Prefix,
		Logger:     logger,
		GlobalTags: m.Tags,
	})
	if err != nil {
		return fail(fmt.Errorf("connect statsd: %w", err))
	}
	infra.Metrics = client

	if cfg.Postgres.Enabled {
		db, dbErr := ConnectDB(ctx, cfg.Postgres, logger)
		if dbErr != nil {
			return fail(fmt.Errorf("connect db: %w", dbErr))
		}
		infra.DB = db
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				return fail(err)
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	if cfg.Session.Store == config.StoreRedis {
		rc, rErr := ConnectRedis(ctx, cfg.Redis, logger)
		if rErr != nil {
			return fail(fmt.Errorf("connect redis: %w", rErr))
		}
		infra.RedisClient = rc
	}
	return infra, nil
}

// Run starts the gateway and blocks until ctx is canceled or the server fails.
// ln may be nil to listen on the configured address.
func Run(ctx context.Context, cfg *config.AppConfig, ln net.Listener, logger *slog.Logger) error {
	infra, err := ConnectInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close infrastructure failed", "error", cerr)
		}
	}()

	services, err := NewServices(ctx, &ServiceDeps{
		Config:      cfg,
		DB:          infra.DB,
		RedisClient: infra.RedisClient,
		Metrics:     infra.Metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	if err := services.Providers.ConfigurationErrors(); err != nil {
		logger.ErrorContext(ctx, "gateway starting degraded", "error", err)
	}

	handler, err := BuildHTTPHandler(&HTTPServerConfig{
		Config:   cfg,
		Services: services,
		Metrics:  infra.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	server := NewHTTPServer(cfg.HTTP, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ServeHTTP(gctx, server, ln, cfg.HTTP, logger)
	})
	if p := services.Providers.OIDC; p != nil {
		// Warm discovery so the first login does not pay for it. Failure is retried on use.
		g.Go(func() error {
			if err := p.Ready(gctx); err != nil && gctx.Err() == nil {
				logger.WarnContext(gctx, "oidc discovery failed; will retry on first login", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
