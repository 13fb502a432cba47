package httpx

import (
	"net/http"
	"strings"
	"time"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

// Cookie names.
const (
	DefaultSessionCookie = "portal_session"
	stateCookie          = "oauth_state"
)

// CookieConfig controls how gateway cookies are written.
type CookieConfig struct {
	SessionName string
	Domain      string
	// Insecure drops the Secure attribute on plain-HTTP requests (development only).
	Insecure bool
	StateTTL time.Duration
}

func (c CookieConfig) sessionName() string {
	if c.SessionName == "" {
		return DefaultSessionCookie
	}
	return c.SessionName
}

func (c CookieConfig) secure(r *http.Request) bool {
	if !c.Insecure {
		return true
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (c CookieConfig) set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clear expires a cookie, mirroring the attributes used when setting it.
func (c CookieConfig) clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setSession writes the session cookie. Max-Age is the tenant absolute timeout.
func (c CookieConfig) setSession(w http.ResponseWriter, r *http.Request, s domainauth.Session, token string) {
	c.set(w, r, c.sessionName(), token, int(s.AbsoluteTimeoutSeconds))
}

func (c CookieConfig) setState(w http.ResponseWriter, r *http.Request, state string) {
	ttl := c.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c.set(w, r, stateCookie, state, int(ttl.Seconds()))
}

func (c CookieConfig) sessionToken(r *http.Request) string {
	ck, err := r.Cookie(c.sessionName())
	if err != nil {
		return ""
	}
	return ck.Value
}
