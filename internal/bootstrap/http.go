package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/nextphaseit/portal-gateway/config"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	httpx "github.com/nextphaseit/portal-gateway/internal/http"
	"github.com/nextphaseit/portal-gateway/internal/observability/statsd"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// BuildHTTPHandler assembles the router with its middleware chain.
func BuildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return nil, errors.New("http server config with services is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	pages, err := httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	services := httpx.RouterServices{
		Auth:     cfg.Services.Auth,
		Sessions: cfg.Services.Sessions,
		Tenants:  cfg.Services.Tenants,
		Health:   cfg.Services.Health,
		Routes:   domainauth.DefaultRouteTable(),
		Cookies: httpx.CookieConfig{
			SessionName: appCfg.Session.CookieName,
			Domain:      appCfg.Session.CookieDomain,
			Insecure:    appCfg.IsDev,
			StateTTL:    appCfg.Auth.StateTTL,
		},
		RateLimiter: cfg.Services.RateLimiter,
		TrustProxy:  appCfg.HTTP.TrustProxy,
		Metrics:     cfg.Metrics,
		Logger:      logger,
		Pages:       pages,
	}
	// A nil *demoauth.Provider must not become a non-nil interface.
	if demo := cfg.Services.Providers.Demo; demo != nil {
		services.Demo = demo
	}
	return httpx.NewRouter(services), nil
}

// NewHTTPServer builds a server with the configured timeouts.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	addr := cfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// ServeHTTP runs server on ln until ctx is canceled, then shuts it down
// within cfg.ShutdownTimeout. A nil ln listens on server.Addr.
func ServeHTTP(ctx context.Context, server *http.Server, ln net.Listener, cfg config.HTTPConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if ln == nil {
		var err error
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", server.Addr, err)
		}
	}
	server.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.InfoContext(ctx, "shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.InfoContext(ctx, "HTTP server stopped")
	return nil
}
