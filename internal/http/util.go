package httpx

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	// Browsers treat a leading backslash like a slash.
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "/\\") || strings.ContainsAny(candidate, "\r\n") {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}

// loginErrorURL is where failed login flows land.
func loginErrorURL(reason string) string {
	q := url.Values{}
	q.Set("error", reason)
	return "/login?" + q.Encode()
}

// loginURL builds the provider chooser URL preserving the requested path.
func loginURL(returnTo string) string {
	returnTo = safeRedirectPath(returnTo)
	if returnTo == "/" {
		return "/login"
	}
	q := url.Values{}
	q.Set("return_to", returnTo)
	return "/login?" + q.Encode()
}

// ClientIP returns the request's client address. X-Forwarded-For is only
// honored when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// isBrowserRequest determines if a request is from a browser based on the
// path (API routes start with /api/) and the Accept header.
func isBrowserRequest(r *http.Request) bool {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html") || !strings.Contains(accept, "application/json")
}
