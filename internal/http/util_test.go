package httpx

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/portal", "/portal"},
		{"/portal/tickets?id=4#top", "/portal/tickets?id=4#top"},
		{"https://evil.test/", "/"},
		{"//evil.test/path", "/"},
		{"/\\evil.test", "/"},
		{"javascript:alert(1)", "/"},
		{"portal", "/"},
		{"/ok\r\nSet-Cookie: x", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeRedirectPath(tt.in), tt.in)
	}
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", loginURL("/"))
	assert.Equal(t, "/login?return_to=%2Fadmin%2Fdashboard", loginURL("/admin/dashboard"))
	assert.Equal(t, "/login", loginURL("https://evil.test"))
	assert.Equal(t, "/login?error=token_failed", loginErrorURL("token_failed"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.10", ClientIP(r, false))
	assert.Equal(t, "203.0.113.9", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-Ip", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", ClientIP(r, true))
}

func TestIsBrowserRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/portal", nil)
	assert.True(t, isBrowserRequest(r))

	r.Header.Set("Accept", "application/json")
	assert.False(t, isBrowserRequest(r))

	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	assert.True(t, isBrowserRequest(r))

	api := httptest.NewRequest("GET", "/api/me", nil)
	api.Header.Set("Accept", "text/html")
	assert.False(t, isBrowserRequest(api))
}
