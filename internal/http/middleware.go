package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/observability/metrics"
	"github.com/nextphaseit/portal-gateway/internal/observability/statsd"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionValidator resolves session tokens for the guard.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (domainauth.Session, error)
	Touch(ctx context.Context, sess domainauth.Session) (domainauth.Session, error)
}

// GuardConfig configures the route guard middleware.
type GuardConfig struct {
	Routes   *domainauth.RouteTable
	Sessions SessionValidator
	Cookies  CookieConfig
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// Guard classifies every request path and enforces the route table.
// Browser requests are redirected (303) to /login or /unauthorized; API
// requests get JSON 401/403. Allowed requests carry the touched session in
// their context.
func Guard(cfg GuardConfig) func(http.Handler) http.Handler {
	routes := cfg.Routes
	if routes == nil {
		routes = domainauth.DefaultRouteTable()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := routes.Classify(r.URL.Path)
			if class == domainauth.RoutePublic {
				metrics.EmitGuardDecision(cfg.Metrics, class, domainauth.OutcomeAllow)
				next.ServeHTTP(w, r)
				return
			}

			sess := guardSession(w, r, cfg, logger)
			outcome := domainauth.AuthorizeClass(class, sess)
			metrics.EmitGuardDecision(cfg.Metrics, class, outcome)

			switch outcome {
			case domainauth.OutcomeAllow:
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
			case domainauth.OutcomeRedirectToUnauthorized:
				if isBrowserRequest(r) {
					http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
					return
				}
				WriteAPIError(w, http.StatusForbidden, APIError{
					Code:    codeInsufficientRoles,
					Message: "this resource requires the admin role",
				})
			default:
				if isBrowserRequest(r) {
					http.Redirect(w, r, loginURL(r.URL.RequestURI()), http.StatusSeeOther)
					return
				}
				WriteAPIError(w, http.StatusUnauthorized, APIError{
					Code:     codeAuthRequired,
					Message:  "sign in to continue",
					LoginURL: loginURL(r.URL.RequestURI()),
				})
			}
		})
	}
}

// guardSession validates and touches the request's session. A cookie that no
// longer names a live session is cleared.
func guardSession(w http.ResponseWriter, r *http.Request, cfg GuardConfig, logger *slog.Logger) *domainauth.Session {
	token := cfg.Cookies.sessionToken(r)
	if token == "" || cfg.Sessions == nil {
		return nil
	}
	ctx := r.Context()
	sess, err := cfg.Sessions.Validate(ctx, token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionExpired) && !errors.Is(err, domainauth.ErrSessionInvalid) {
			logger.ErrorContext(ctx, "session validation failed", "error", err)
			return nil
		}
		cfg.Cookies.clear(w, r, cfg.Cookies.sessionName())
		return nil
	}
	touched, err := cfg.Sessions.Touch(ctx, sess)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionExpired) || errors.Is(err, domainauth.ErrSessionInvalid) {
			cfg.Cookies.clear(w, r, cfg.Cookies.sessionName())
			return nil
		}
		// The validated session stays usable when the refresh write fails.
		logger.WarnContext(ctx, "session touch failed", "error", err)
		return &sess
	}
	return &touched
}
