package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	authmocks "github.com/nextphaseit/portal-gateway/internal/mocks/auth"
	"github.com/nextphaseit/portal-gateway/internal/observability/metrics"
)

// stubSessions maps tokens to sessions for guard tests.
type stubSessions struct {
	sessions map[string]domainauth.Session
	errs     map[string]error
	touchErr error
	touched  int
}

func (s *stubSessions) Validate(_ context.Context, token string) (domainauth.Session, error) {
	if err, ok := s.errs[token]; ok {
		return domainauth.Session{}, err
	}
	sess, ok := s.sessions[token]
	if !ok {
		return domainauth.Session{}, domainauth.ErrSessionInvalid
	}
	return sess, nil
}

func (s *stubSessions) Touch(_ context.Context, sess domainauth.Session) (domainauth.Session, error) {
	s.touched++
	if s.touchErr != nil {
		return domainauth.Session{}, s.touchErr
	}
	return sess, nil
}

func newStubSessions() *stubSessions {
	return &stubSessions{
		sessions: map[string]domainauth.Session{
			"staff-token": {ID: "s-staff", Role: domainauth.RoleStaff, Email: "staff@nextphaseit.org"},
			"admin-token": {ID: "s-admin", Role: domainauth.RoleAdmin, Email: "adrian.knight@nextphaseit.org"},
		},
		errs: map[string]error{},
	}
}

func guardRequest(t *testing.T, h http.Handler, path, token, accept string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
	}
	if accept != "" {
		r.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestGuard(t *testing.T) {
	sessions := newStubSessions()
	sink := &authmocks.RecordingSink{}
	var seen *domainauth.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := Guard(GuardConfig{Sessions: sessions, Metrics: sink})(next)

	tests := []struct {
		name     string
		path     string
		token    string
		accept   string
		code     int
		location string
	}{
		{name: "public landing", path: "/", code: http.StatusOK},
		{name: "admin anonymous", path: "/admin/dashboard", code: http.StatusSeeOther, location: "/login?return_to=%2Fadmin%2Fdashboard"},
		{name: "admin as staff", path: "/admin/dashboard", token: "staff-token", code: http.StatusSeeOther, location: "/unauthorized"},
		{name: "admin as admin", path: "/admin/dashboard", token: "admin-token", code: http.StatusOK},
		{name: "portal with query", path: "/portal/tickets?id=7", code: http.StatusSeeOther, location: "/login?return_to=%2Fportal%2Ftickets%3Fid%3D7"},
		{name: "portal as staff", path: "/portal", token: "staff-token", code: http.StatusOK},
		{name: "unknown token", path: "/portal", token: "forged", code: http.StatusSeeOther, location: "/login?return_to=%2Fportal"},
		{name: "api anonymous", path: "/api/me", code: http.StatusUnauthorized},
		{name: "api admin as staff", path: "/api/admin/users", token: "staff-token", code: http.StatusForbidden},
		{name: "json client on portal", path: "/portal", accept: "application/json", code: http.StatusUnauthorized},
		{name: "unlisted path fails closed", path: "/reports", code: http.StatusSeeOther, location: "/login?return_to=%2Freports"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			rec := guardRequest(t, h, tt.path, tt.token, tt.accept)
			assert.Equal(t, tt.code, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
			if tt.code == http.StatusOK && tt.token != "" {
				require.NotNil(t, seen)
				assert.Equal(t, sessions.sessions[tt.token].ID, seen.ID)
			}
		})
	}

	decisions := sink.Named(metrics.GuardDecision)
	assert.Len(t, decisions, len(tests))
}

func TestGuard_APIErrorBody(t *testing.T) {
	h := Guard(GuardConfig{Sessions: newStubSessions()})(http.NotFoundHandler())

	rec := guardRequest(t, h, "/api/me?fields=email", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, codeAuthRequired, body.Code)
	assert.Equal(t, "/login?return_to=%2Fapi%2Fme%3Ffields%3Demail", body.LoginURL)

	rec = guardRequest(t, h, "/api/admin/users", "staff-token", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	body = APIError{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, codeInsufficientRoles, body.Code)
	assert.Empty(t, body.LoginURL)
}

func TestGuard_ClearsDeadCookie(t *testing.T) {
	sessions := newStubSessions()
	sessions.errs["expired-token"] = domainauth.ErrSessionExpired
	h := Guard(GuardConfig{Sessions: sessions})(http.NotFoundHandler())

	rec := guardRequest(t, h, "/portal", "expired-token", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultSessionCookie, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestGuard_TouchFailures(t *testing.T) {
	sessions := newStubSessions()
	h := Guard(GuardConfig{Sessions: sessions, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	sessions.touchErr = errors.New("redis timeout")
	assert.Equal(t, http.StatusOK, guardRequest(t, h, "/portal", "staff-token", "").Code,
		"a failed refresh keeps the validated session")

	sessions.touchErr = domainauth.ErrSessionExpired
	assert.Equal(t, http.StatusSeeOther, guardRequest(t, h, "/portal", "staff-token", "").Code)

	sessions.touchErr = domainauth.ErrSessionInvalid
	rec := guardRequest(t, h, "/portal", "staff-token", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code, "session revoked between validate and touch")
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
	assert.Equal(t, 3, sessions.touched)
}

func TestGuard_StoreErrorFailsClosed(t *testing.T) {
	sessions := newStubSessions()
	sessions.errs["staff-token"] = errors.New("connection refused")
	var logs bytes.Buffer
	h := Guard(GuardConfig{Sessions: sessions, Logger: slog.New(slog.NewTextHandler(&logs, nil))})(http.NotFoundHandler())

	rec := guardRequest(t, h, "/api/me", "staff-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "cookie kept when the store is unreachable")
	assert.Contains(t, logs.String(), "session validation failed")
}

func TestRecover(t *testing.T) {
	var logs bytes.Buffer
	h := Recover(slog.New(slog.NewTextHandler(&logs, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "boom")
}

func TestLogging(t *testing.T) {
	var logs bytes.Buffer
	h := Logging(slog.New(slog.NewJSONHandler(&logs, nil)))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))
	assert.Contains(t, logs.String(), `"status":418`)
	assert.Contains(t, logs.String(), `"path":"/brew"`)
}
