package auth

import "time"

// EventKind classifies an audit event.
type EventKind string

const (
	EventLoginSuccess EventKind = "login_success"
	EventLoginFailure EventKind = "login_failure"
	EventLogout       EventKind = "logout"
)

// Event is an audit record of an authentication outcome.
// Email may be empty when the failure happened before an identity was known.
type Event struct {
	Kind       EventKind
	Provider   ProviderName
	Email      string
	TenantID   string
	SessionID  string
	Reason     string
	RemoteAddr string
	OccurredAt time.Time
}
