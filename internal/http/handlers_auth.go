package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, provider domainauth.ProviderName, returnTo string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	Logout(ctx context.Context, token, remoteAddr string) error
	Providers() []domainauth.ProviderName
}

// DemoAuthorizer checks demo credentials and returns the callback URL.
type DemoAuthorizer interface {
	Authorize(ctx context.Context, email, password, state, challenge string) (string, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc        AuthServiceInterface
	Sessions   SessionValidator
	Demo       DemoAuthorizer
	Cookies    CookieConfig
	Pages      *TemplateRenderer
	TrustProxy bool
	Logger     *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var reasonMessages = map[string]string{
	domainauth.ReasonOAuthFailed:        "Sign-in could not be started. Please try again later.",
	domainauth.ReasonCallbackFailed:     "Your sign-in attempt expired or was already used. Please try again.",
	domainauth.ReasonTokenFailed:        "The identity provider did not accept the sign-in. Please try again.",
	domainauth.ReasonProfileFailed:      "Your profile could not be read from the identity provider. Please try again.",
	domainauth.ReasonUnauthorizedDomain: "Your account is not authorized for this portal.",
}

var providerLabels = map[domainauth.ProviderName]string{
	domainauth.ProviderMicrosoft: "Microsoft",
	domainauth.ProviderAuth0:     "Auth0",
	domainauth.ProviderDemo:      "a demo account",
}

type providerLink struct {
	Label string
	URL   string
}

type loginPageData struct {
	PageData
	Error     string
	Providers []providerLink
}

// LoginPage renders the provider chooser.
// GET /login?return_to=<path>&error=<reason>.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	returnTo := safeRedirectPath(r.URL.Query().Get("return_to"))
	data := loginPageData{PageData: PageData{Title: "Sign in"}}
	if reason := r.URL.Query().Get("error"); reason != "" {
		msg, ok := reasonMessages[reason]
		if !ok {
			msg = reasonMessages[domainauth.ReasonCallbackFailed]
		}
		data.Error = msg
	}
	for _, p := range h.Svc.Providers() {
		label := providerLabels[p]
		if label == "" {
			label = string(p)
		}
		u := url.URL{Path: "/login/" + string(p)}
		if returnTo != "/" {
			u.RawQuery = url.Values{"return_to": {returnTo}}.Encode()
		}
		data.Providers = append(data.Providers, providerLink{Label: label, URL: u.String()})
	}
	h.Pages.Render(w, http.StatusOK, pageLogin, data)
}

// Login starts a provider flow.
// GET /login/{provider}?return_to=<optional path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	provider := domainauth.ProviderName(r.PathValue("provider"))
	returnTo := safeRedirectPath(r.URL.Query().Get("return_to"))

	result, err := h.Svc.BeginLogin(r.Context(), provider, returnTo)
	if err != nil {
		h.logger().WarnContext(r.Context(), "login could not start", "provider", provider, "error", err)
		http.Redirect(w, r, loginErrorURL(domainauth.ReasonOAuthFailed), http.StatusFound)
		return
	}

	// The state cookie binds the callback to this browser.
	h.Cookies.setState(w, r, result.State)
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback completes a provider flow.
// GET /auth/{provider}/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	provider := domainauth.ProviderName(r.PathValue("provider"))
	q := r.URL.Query()
	h.Cookies.clear(w, r, stateCookie)

	if idpErr := q.Get("error"); idpErr != "" {
		h.logger().WarnContext(r.Context(), "identity provider returned an error",
			"provider", provider,
			"error", idpErr,
			"description", q.Get("error_description"),
		)
		http.Redirect(w, r, loginErrorURL(domainauth.ReasonOAuthFailed), http.StatusFound)
		return
	}

	state := q.Get("state")
	ck, err := r.Cookie(stateCookie)
	if state == "" || err != nil || ck.Value != state {
		h.logger().WarnContext(r.Context(), "callback state does not match browser", "provider", provider)
		http.Redirect(w, r, loginErrorURL(domainauth.ReasonCallbackFailed), http.StatusFound)
		return
	}

	result, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Provider:   provider,
		Code:       q.Get("code"),
		State:      state,
		RemoteAddr: ClientIP(r, h.TrustProxy),
	})
	if err != nil {
		http.Redirect(w, r, loginErrorURL(domainauth.FailureReason(err)), http.StatusFound)
		return
	}

	h.Cookies.setSession(w, r, result.Session, result.Token)
	http.Redirect(w, r, safeRedirectPath(result.ReturnTo), http.StatusFound)
}

// Logout revokes the session and returns to the landing page.
// GET|POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.Cookies.sessionToken(r); token != "" {
		if err := h.Svc.Logout(r.Context(), token, ClientIP(r, h.TrustProxy)); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	h.Cookies.clear(w, r, h.Cookies.sessionName())

	isAJAX := strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
	if isAJAX {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": "/",
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// Status returns the current authentication status without refreshing the session.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	token := h.Cookies.sessionToken(r)
	if token == "" || h.Sessions == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	session, err := h.Sessions.Validate(r.Context(), token)
	if err != nil {
		h.Cookies.clear(w, r, h.Cookies.sessionName())
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          sessionUser(session),
		"expires_at":    session.ExpiresAt,
	})
}

func sessionUser(s domainauth.Session) map[string]any {
	return map[string]any{
		"id":           s.SubjectID,
		"email":        s.Email,
		"display_name": s.DisplayName,
		"role":         s.Role,
		"tenant":       s.TenantID,
		"provider":     s.Provider,
	}
}

// Unauthorized renders the access denied page. It has no side effects.
// GET /unauthorized.
func (h *AuthHandlers) Unauthorized(w http.ResponseWriter, _ *http.Request) {
	h.Pages.Render(w, http.StatusForbidden, pageUnauthorized, PageData{Title: "Access denied"})
}

type demoPageData struct {
	PageData
	Action    string
	State     string
	Challenge string
	Email     string
	Error     string
}

// DemoForm renders the demo credential form.
// GET /auth/demo/authorize?state=<state>&code_challenge=<challenge>.
func (h *AuthHandlers) DemoForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") == "" || q.Get("code_challenge") == "" {
		http.Redirect(w, r, loginErrorURL(domainauth.ReasonCallbackFailed), http.StatusFound)
		return
	}
	h.Pages.Render(w, http.StatusOK, pageDemoAuthorize, demoPageData{
		PageData:  PageData{Title: "Demo sign in"},
		Action:    r.URL.Path,
		State:     q.Get("state"),
		Challenge: q.Get("code_challenge"),
	})
}

// DemoSubmit checks demo credentials and redirects to the callback.
// POST /auth/demo/authorize.
func (h *AuthHandlers) DemoSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	data := demoPageData{
		PageData:  PageData{Title: "Demo sign in"},
		Action:    r.URL.Path,
		State:     r.PostForm.Get("state"),
		Challenge: r.PostForm.Get("code_challenge"),
		Email:     r.PostForm.Get("email"),
	}

	callback, err := h.Demo.Authorize(r.Context(), data.Email, r.PostForm.Get("password"), data.State, data.Challenge)
	switch {
	case err == nil:
		http.Redirect(w, r, callback, http.StatusFound)
	case errors.Is(err, domainauth.ErrTooManyAttempts):
		data.Error = "Too many failed attempts. Try again later."
		h.Pages.Render(w, http.StatusTooManyRequests, pageDemoAuthorize, data)
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		data.Error = "Incorrect email or password."
		h.Pages.Render(w, http.StatusUnauthorized, pageDemoAuthorize, data)
	case errors.Is(err, domainauth.ErrInvalidState):
		http.Redirect(w, r, loginErrorURL(domainauth.ReasonCallbackFailed), http.StatusFound)
	default:
		h.logger().ErrorContext(r.Context(), "demo authorize failed", "error", err)
		http.Redirect(w, r, loginErrorURL(domainauth.ReasonOAuthFailed), http.StatusFound)
	}
}
