package auth

import (
	"errors"
	"strings"
)

// Error taxonomy for the gateway. Adapters translate provider and transport
// failures into these sentinels; callers branch with errors.Is.
var (
	ErrInvalidState        = errors.New("invalid or replayed login state")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrProfileFetchFailed  = errors.New("profile fetch failed")
	ErrUnauthorizedDomain  = errors.New("identity is not authorized for any tenant")
	ErrConfiguration       = errors.New("configuration error")
	ErrSessionExpired      = errors.New("session expired")
	ErrSessionInvalid      = errors.New("session invalid")
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrUnknownProvider     = errors.New("unknown identity provider")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTooManyAttempts     = errors.New("too many failed attempts")
)

// ConfigurationError describes a missing or invalid piece of configuration.
// errors.Is(err, ErrConfiguration) is true for every ConfigurationError.
type ConfigurationError struct {
	Component string
	Problems  []string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Component + ": " + strings.Join(e.Problems, "; ")
}

// Is makes ConfigurationError match ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError returns nil when problems is empty.
func NewConfigurationError(component string, problems ...string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ConfigurationError{Component: component, Problems: problems}
}

// Login failure reasons reported to the browser as /login?error=<reason>.
const (
	ReasonOAuthFailed        = "oauth_failed"
	ReasonCallbackFailed     = "callback_failed"
	ReasonTokenFailed        = "token_failed"
	ReasonProfileFailed      = "profile_failed"
	ReasonUnauthorizedDomain = "unauthorized_domain"
)

// FailureReason maps an error from a login flow to a browser-facing reason.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorizedDomain), errors.Is(err, ErrTenantNotFound):
		return ReasonUnauthorizedDomain
	case errors.Is(err, ErrTokenExchangeFailed):
		return ReasonTokenFailed
	case errors.Is(err, ErrProfileFetchFailed):
		return ReasonProfileFailed
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrUnknownProvider):
		return ReasonOAuthFailed
	default:
		return ReasonCallbackFailed
	}
}

// Retryable reports whether the user should simply try signing in again.
func Retryable(err error) bool {
	return errors.Is(err, ErrTokenExchangeFailed) || errors.Is(err, ErrProfileFetchFailed) ||
		errors.Is(err, ErrInvalidState)
}
