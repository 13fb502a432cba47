package httpx

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	pageLanding        = "landing"
	pageLogin          = "login"
	pageUnauthorized   = "unauthorized"
	pagePortal         = "portal"
	pageAdminDashboard = "admin_dashboard"
	pageDemoAuthorize  = "demo_authorize"
)

// PageData is the common template payload.
type PageData struct {
	Title   string
	Session *domainauth.Session
}

// TemplateRenderer renders HTML pages. Each page is parsed together with the
// shared layout so pages can redefine "content" independently.
type TemplateRenderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // defaults to the embedded templates
	Logger     *slog.Logger // for logging template errors (optional)
}

// NewTemplateRenderer constructs a renderer by parsing every page template.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	fsys := cfg.TemplateFS
	if fsys == nil {
		sub, err := fs.Sub(templateFS, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}
	r := &TemplateRenderer{pages: make(map[string]*template.Template), logger: logger}
	for _, name := range names {
		if name == "layout.html" {
			continue
		}
		t, err := template.New(name).ParseFS(fsys, "layout.html", name)
		if err != nil {
			logger.Error("template parsing failed", slog.Any("error", err), slog.String("template", name))
			return nil, err
		}
		r.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	if len(r.pages) == 0 {
		return nil, errors.New("no page templates found")
	}
	return r, nil
}

// Render writes page with status, buffering so template errors produce a clean 500.
func (r *TemplateRenderer) Render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown template", slog.String("template", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template render failed", slog.Any("error", err), slog.String("template", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return
	}
}

// mustRenderer is used where the embedded templates are known to parse.
func mustRenderer(logger *slog.Logger) *TemplateRenderer {
	r, err := NewTemplateRenderer(TemplateRendererConfig{Logger: logger})
	if err != nil {
		panic(fmt.Sprintf("embedded templates: %v", err))
	}
	return r
}
