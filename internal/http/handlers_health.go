package httpx

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler reports readiness. Configuration errors and failed checks
// make it answer 503.
type HealthHandler struct {
	ConfigErrors func() []error
	Checks       []HealthCheck
	Timeout      time.Duration
}

type healthResponse struct {
	Status string            `json:"status"`
	Errors []string          `json:"errors,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.ConfigErrors != nil {
		for _, err := range h.ConfigErrors() {
			resp.Errors = append(resp.Errors, err.Error())
		}
	}

	if len(h.Checks) > 0 {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		resp.Checks = make(map[string]string, len(h.Checks))
		for _, c := range h.Checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Errors = append(resp.Errors, c.Name+": "+err.Error())
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
	}

	code := http.StatusOK
	if len(resp.Errors) > 0 {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, resp)
}
