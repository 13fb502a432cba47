package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// API error codes returned to non-browser clients.
const (
	codeAuthRequired      = "authentication_required"
	codeInsufficientRoles = "insufficient_permissions"
	codeRateLimited       = "rate_limited"
)

// APIError is the JSON body of every gateway error response.
// LoginURL tells script clients where a browser should be sent to sign in.
type APIError struct {
	Code     string `json:"error"`
	Message  string `json:"message"`
	LoginURL string `json:"login_url,omitempty"`
}

// WriteJSON encodes v before touching w so an encoding failure still yields a clean 500.
// Responses are never cached; they describe the caller's session.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w) // client went away
}

// WriteAPIError writes e with status.
func WriteAPIError(w http.ResponseWriter, status int, e APIError) {
	WriteJSON(w, status, e)
}
