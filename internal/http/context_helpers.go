package httpx

import (
	"context"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

type sessionKey struct{}

// WithSession attaches the caller's session. A nil session leaves ctx as is.
func WithSession(ctx context.Context, s *domainauth.Session) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session Guard attached to ctx, if any.
func SessionFrom(ctx context.Context) (*domainauth.Session, bool) {
	s, _ := ctx.Value(sessionKey{}).(*domainauth.Session)
	return s, s != nil
}
