package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nextphaseit/portal-gateway/internal/adapters/demoauth"
	"github.com/nextphaseit/portal-gateway/internal/adapters/memory"
	"github.com/nextphaseit/portal-gateway/internal/adapters/tenants"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	authmocks "github.com/nextphaseit/portal-gateway/internal/mocks/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
	"github.com/nextphaseit/portal-gateway/internal/service"
)

const demoPassword = "correct-horse-battery"

type gateway struct {
	server  *httptest.Server
	auditor *authmocks.RecordingAuditor
}

func newGateway(t *testing.T) gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.MinCost)
	require.NoError(t, err)

	attempts := memory.NewLoginAttempts(memory.DefaultLockoutWindow)
	t.Cleanup(attempts.Close)
	resolver := service.NewTenantResolver(tenants.Default())

	demo, err := demoauth.NewProvider(demoauth.ProviderConfig{
		Users: []demoauth.User{
			{Email: "adrian.knight@nextphaseit.org", DisplayName: "Adrian Knight", PasswordHash: string(hash)},
			{Email: "staff@nextphaseit.org", PasswordHash: string(hash)},
			{Email: "outsider@other.org", PasswordHash: string(hash)},
		},
		Attempts: attempts,
		Limit:    resolver.MaxFailedAttempts,
	})
	require.NoError(t, err)
	t.Cleanup(demo.Close)

	states := memory.NewPKCEStore()
	t.Cleanup(states.Close)
	store := memory.NewSessionStore()
	t.Cleanup(store.Close)
	sessions, err := service.NewSessionManager(service.SessionManagerOptions{
		Store:         store,
		SigningSecret: []byte(strings.Repeat("k", service.MinSigningSecretLen)),
	})
	require.NoError(t, err)

	auditor := &authmocks.RecordingAuditor{}
	cfgErr := domainauth.NewConfigurationError("microsoft", "MICROSOFT_CLIENT_ID is required")
	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Providers:      []ports.IdentityProvider{demo},
		ProviderErrors: map[domainauth.ProviderName]error{domainauth.ProviderMicrosoft: cfgErr},
		States:         states,
		Tenants:        resolver,
		Sessions:       sessions,
		Audit:          auditor,
		Logger:         logger,
	})
	require.NoError(t, err)

	handler := NewRouter(RouterServices{
		Auth:     svc,
		Sessions: sessions,
		Demo:     demo,
		Tenants:  resolver,
		Health:   &HealthHandler{ConfigErrors: svc.ConfigurationErrors},
		Cookies:  CookieConfig{Insecure: true},
		Logger:   logger,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gateway{server: srv, auditor: auditor}
}

// browser is a cookie-keeping client that does not follow redirects.
func (g gateway) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (g gateway) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := c.Get(g.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// signIn runs the demo flow and returns the final callback response.
func (g gateway) signIn(t *testing.T, c *http.Client, email, returnTo string) *http.Response {
	t.Helper()
	start := g.get(t, c, "/login/demo?return_to="+url.QueryEscape(returnTo))
	require.Equal(t, http.StatusFound, start.StatusCode)
	authorize, err := url.Parse(start.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, demoauth.AuthorizePath, authorize.Path)

	form := g.get(t, c, authorize.RequestURI())
	require.Equal(t, http.StatusOK, form.StatusCode)

	resp, err := c.PostForm(g.server.URL+demoauth.AuthorizePath, url.Values{
		"state":          {authorize.Query().Get("state")},
		"code_challenge": {authorize.Query().Get("code_challenge")},
		"email":          {email},
		"password":       {demoPassword},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Location"), demoauth.CallbackPath))

	return g.get(t, c, resp.Header.Get("Location"))
}

func TestRouter_PublicAndGuardedRoutes(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	for _, path := range []string{"/", "/about", "/services", "/contact", "/support", "/login", "/unauthorized"} {
		resp := g.get(t, c, path)
		assert.Contains(t, []int{http.StatusOK, http.StatusForbidden}, resp.StatusCode, path)
	}

	resp := g.get(t, c, "/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?return_to=%2Fadmin%2Fdashboard", resp.Header.Get("Location"))

	api := g.get(t, c, "/api/me")
	assert.Equal(t, http.StatusUnauthorized, api.StatusCode)
	assert.Equal(t, "application/json", api.Header.Get("Content-Type"))
}

func TestRouter_StaffLoginFlow(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	done := g.signIn(t, c, "Staff@NextPhaseIT.org", "/portal")
	require.Equal(t, http.StatusFound, done.StatusCode)
	assert.Equal(t, "/portal", done.Header.Get("Location"))

	var sessionCookie *http.Cookie
	for _, ck := range done.Cookies() {
		if ck.Name == DefaultSessionCookie {
			sessionCookie = ck
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, sessionCookie.SameSite)
	assert.Equal(t, domainauth.DefaultAbsoluteTimeoutSeconds, int64(sessionCookie.MaxAge))

	assert.Equal(t, http.StatusOK, g.get(t, c, "/portal").StatusCode)

	admin := g.get(t, c, "/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, admin.StatusCode)
	assert.Equal(t, "/unauthorized", admin.Header.Get("Location"))

	me := g.get(t, c, "/api/me")
	require.Equal(t, http.StatusOK, me.StatusCode)
	var body struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.NewDecoder(me.Body).Decode(&body))
	assert.Equal(t, "staff@nextphaseit.org", body.User["email"])
	assert.Equal(t, "staff", body.User["role"])
	assert.Equal(t, "nextphaseit", body.User["tenant"])

	out := g.get(t, c, "/logout")
	assert.Equal(t, http.StatusFound, out.StatusCode)
	assert.Equal(t, "/", out.Header.Get("Location"))

	assert.Equal(t, http.StatusSeeOther, g.get(t, c, "/portal").StatusCode)

	kinds := []domainauth.EventKind{}
	for _, ev := range g.auditor.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []domainauth.EventKind{domainauth.EventLoginSuccess, domainauth.EventLogout}, kinds)
}

func TestRouter_AdminLoginFlow(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	done := g.signIn(t, c, "adrian.knight@nextphaseit.org", "/admin/dashboard")
	require.Equal(t, http.StatusFound, done.StatusCode)
	assert.Equal(t, "/admin/dashboard", done.Header.Get("Location"))

	dash := g.get(t, c, "/admin/dashboard")
	require.Equal(t, http.StatusOK, dash.StatusCode)
	page, err := io.ReadAll(dash.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "nextphaseit.org")

	status := g.get(t, c, "/auth/status")
	var st map[string]any
	require.NoError(t, json.NewDecoder(status.Body).Decode(&st))
	assert.Equal(t, true, st["authenticated"])
}

func TestRouter_OutsiderIsRejected(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	done := g.signIn(t, c, "outsider@other.org", "/portal")
	require.Equal(t, http.StatusFound, done.StatusCode)
	assert.Equal(t, "/login?error=unauthorized_domain", done.Header.Get("Location"))
	for _, ck := range done.Cookies() {
		if ck.Name == DefaultSessionCookie {
			assert.Empty(t, ck.Value)
		}
	}
	assert.Equal(t, http.StatusSeeOther, g.get(t, c, "/portal").StatusCode)
}

func TestRouter_CallbackRequiresStateCookie(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	start := g.get(t, c, "/login/demo")
	require.Equal(t, http.StatusFound, start.StatusCode)
	authorize, err := url.Parse(start.Header.Get("Location"))
	require.NoError(t, err)

	// A different browser replays the callback without the state cookie.
	other := g.browser(t)
	resp := g.get(t, other, demoauth.CallbackPath+"?code=x&state="+url.QueryEscape(authorize.Query().Get("state")))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?error=callback_failed", resp.Header.Get("Location"))
}

func TestRouter_ReplayedCallbackFails(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	start := g.get(t, c, "/login/demo")
	authorize, err := url.Parse(start.Header.Get("Location"))
	require.NoError(t, err)
	state := authorize.Query().Get("state")

	resp, err := c.PostForm(g.server.URL+demoauth.AuthorizePath, url.Values{
		"state":          {state},
		"code_challenge": {authorize.Query().Get("code_challenge")},
		"email":          {"staff@nextphaseit.org"},
		"password":       {demoPassword},
	})
	require.NoError(t, err)
	_ = resp.Body.Close()
	callback := resp.Header.Get("Location")

	first := g.get(t, c, callback)
	assert.Equal(t, "/", first.Header.Get("Location"))

	// Restore the state cookie so only the server-side single-use check applies.
	u, err := url.Parse(g.server.URL)
	require.NoError(t, err)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: stateCookie, Value: state, Path: "/"}})
	second := g.get(t, c, callback)
	assert.Equal(t, "/login?error=callback_failed", second.Header.Get("Location"))
}

func TestRouter_WrongPassword(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	start := g.get(t, c, "/login/demo")
	authorize, err := url.Parse(start.Header.Get("Location"))
	require.NoError(t, err)

	resp, err := c.PostForm(g.server.URL+demoauth.AuthorizePath, url.Values{
		"state":          {authorize.Query().Get("state")},
		"code_challenge": {authorize.Query().Get("code_challenge")},
		"email":          {"staff@nextphaseit.org"},
		"password":       {"wrong-password"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Incorrect email or password.")
}

func TestRouter_MisconfiguredProviderFailsClosed(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	resp := g.get(t, c, "/login/microsoft")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?error=oauth_failed", resp.Header.Get("Location"))

	health := g.get(t, c, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, health.StatusCode)
	var body healthResponse
	require.NoError(t, json.NewDecoder(health.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	require.Len(t, body.Errors, 1)
	assert.Contains(t, body.Errors[0], "MICROSOFT_CLIENT_ID")
}

func TestRouter_UnsafeReturnToIsDropped(t *testing.T) {
	g := newGateway(t)
	c := g.browser(t)

	done := g.signIn(t, c, "staff@nextphaseit.org", "https://evil.test/phish")
	assert.Equal(t, "/", done.Header.Get("Location"))
}

func TestHealthHandler_Checks(t *testing.T) {
	h := &HealthHandler{}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h.Checks = []HealthCheck{{Name: "redis", Check: func(_ context.Context) error { return errors.New("dial tcp: refused") }}}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis: dial tcp: refused")
}
