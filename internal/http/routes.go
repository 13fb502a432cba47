package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/observability/statsd"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     AuthServiceInterface
	Sessions SessionValidator
	// Demo is optional; the demo credential form is only served when set.
	Demo    DemoAuthorizer
	Tenants TenantLister
	Health  *HealthHandler

	Routes      *domainauth.RouteTable
	Cookies     CookieConfig
	RateLimiter *RateLimiter
	TrustProxy  bool
	Metrics     statsd.Sink
	Logger      *slog.Logger
	Pages       *TemplateRenderer
}

// NewRouter creates the gateway handler: recovery, access logging and the
// route guard wrapped around the mux.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pages := services.Pages
	if pages == nil {
		pages = mustRenderer(logger)
	}

	authHandlers := &AuthHandlers{
		Svc:        services.Auth,
		Sessions:   services.Sessions,
		Demo:       services.Demo,
		Cookies:    services.Cookies,
		Pages:      pages,
		TrustProxy: services.TrustProxy,
		Logger:     logger,
	}
	pageHandlers := &PageHandlers{
		Pages:    pages,
		Sessions: services.Sessions,
		Cookies:  services.Cookies,
		Tenants:  services.Tenants,
	}
	health := services.Health
	if health == nil {
		health = &HealthHandler{}
	}

	limited := func(h http.HandlerFunc) http.Handler {
		if services.RateLimiter == nil {
			return h
		}
		return services.RateLimiter.Middleware(h)
	}

	mux := http.NewServeMux()
	registerPublicRoutes(mux, pageHandlers, authHandlers)
	registerAuthRoutes(mux, authHandlers, limited)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	mux.HandleFunc("GET /portal", pageHandlers.Portal)
	mux.HandleFunc("GET /admin/dashboard", pageHandlers.AdminDashboard)
	mux.HandleFunc("GET /api/me", pageHandlers.Me)

	guarded := Guard(GuardConfig{
		Routes:   services.Routes,
		Sessions: services.Sessions,
		Cookies:  services.Cookies,
		Metrics:  services.Metrics,
		Logger:   logger,
	})(mux)
	return Recover(logger)(Logging(logger)(guarded))
}

func registerPublicRoutes(mux *http.ServeMux, pages *PageHandlers, auth *AuthHandlers) {
	mux.HandleFunc("GET /{$}", pages.Public)
	for path := range marketingPages {
		if path != "/" {
			mux.HandleFunc("GET "+path, pages.Public)
		}
	}
	mux.HandleFunc("GET /unauthorized", auth.Unauthorized)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, limited func(http.HandlerFunc) http.Handler) {
	mux.Handle("GET /login", limited(h.LoginPage))
	mux.Handle("GET /login/{provider}", limited(h.Login))
	mux.Handle("GET /auth/{provider}/callback", limited(h.Callback))
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /logout", h.Logout)
	mux.HandleFunc("POST /logout", h.Logout)
	if h.Demo != nil {
		mux.Handle("GET /auth/demo/authorize", limited(h.DemoForm))
		mux.Handle("POST /auth/demo/authorize", limited(h.DemoSubmit))
	}
}
