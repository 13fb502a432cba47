package httpx

import (
	"net/http"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

// TenantLister lists the tenant registry for the admin dashboard.
type TenantLister interface {
	Tenants() []domainauth.Tenant
}

// PageHandlers serves the public site and the protected surfaces behind Guard.
type PageHandlers struct {
	Pages    *TemplateRenderer
	Sessions SessionValidator
	Cookies  CookieConfig
	Tenants  TenantLister
}

type landingData struct {
	PageData
	Message string
}

var marketingPages = map[string]landingData{
	"/": {
		PageData: PageData{Title: "Managed IT for growing teams"},
		Message:  "NextPhase IT keeps your people productive and your systems secure.",
	},
	"/about": {
		PageData: PageData{Title: "About us"},
		Message:  "We are a managed service provider focused on small and mid-sized organizations.",
	},
	"/services": {
		PageData: PageData{Title: "Services"},
		Message:  "Help desk, device management, cloud identity and security monitoring.",
	},
	"/contact": {
		PageData: PageData{Title: "Contact"},
		Message:  "Reach our team through the client portal or by phone during business hours.",
	},
	"/support": {
		PageData: PageData{Title: "Support"},
		Message:  "Existing clients can sign in to the portal to open and track tickets.",
	},
}

// Public renders the landing and marketing pages. The header reflects a
// signed-in visitor without refreshing the session.
func (h *PageHandlers) Public(w http.ResponseWriter, r *http.Request) {
	data, ok := marketingPages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if token := h.Cookies.sessionToken(r); token != "" && h.Sessions != nil {
		if sess, err := h.Sessions.Validate(r.Context(), token); err == nil {
			data.Session = &sess
		}
	}
	h.Pages.Render(w, http.StatusOK, pageLanding, data)
}

// Portal renders the client portal home.
// GET /portal.
func (h *PageHandlers) Portal(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		http.Redirect(w, r, loginURL(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	h.Pages.Render(w, http.StatusOK, pagePortal, PageData{Title: "Client portal", Session: sess})
}

type adminData struct {
	PageData
	Tenants []domainauth.Tenant
}

// AdminDashboard renders the tenant overview for administrators.
// GET /admin/dashboard.
func (h *PageHandlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok || !sess.IsAdmin() {
		http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
		return
	}
	data := adminData{PageData: PageData{Title: "Admin dashboard", Session: sess}}
	if h.Tenants != nil {
		data.Tenants = h.Tenants.Tenants()
	}
	h.Pages.Render(w, http.StatusOK, pageAdminDashboard, data)
}

// Me returns the current session as JSON.
// GET /api/me.
func (h *PageHandlers) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusUnauthorized, APIError{
			Code:     codeAuthRequired,
			Message:  "sign in to continue",
			LoginURL: "/login",
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user":       sessionUser(*sess),
		"issued_at":  sess.IssuedAt,
		"expires_at": sess.ExpiresAt,
	})
}
