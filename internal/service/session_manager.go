package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nextphaseit/portal-gateway/internal/clock"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// MinSigningSecretLen is the shortest accepted HS256 secret.
const MinSigningSecretLen = 32

// DefaultIssuer is the JWT iss claim of session tokens.
const DefaultIssuer = "portal-gateway"

// sessionClaims is the signed session token body. The server-side record is
// authoritative; the token only names it and bounds it by the absolute deadline.
type sessionClaims struct {
	SessionID string          `json:"sid"`
	Email     string          `json:"email"`
	Role      domainauth.Role `json:"role"`
	TenantID  string          `json:"tid"`
	jwt.RegisteredClaims
}

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Store         ports.SessionStore
	SigningSecret []byte
	Issuer        string
	Clock         clock.Clock
}

// SessionManager issues, validates, refreshes and revokes sessions.
type SessionManager struct {
	store  ports.SessionStore
	secret []byte
	issuer string
	clock  clock.Clock
}

// NewSessionManager validates opts. A short or missing secret is a ConfigurationError.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	var problems []string
	if opts.Store == nil {
		problems = append(problems, "session store is required")
	}
	if len(opts.SigningSecret) < MinSigningSecretLen {
		problems = append(problems, fmt.Sprintf("signing secret must be at least %d bytes", MinSigningSecretLen))
	}
	if err := domainauth.NewConfigurationError("session", problems...); err != nil {
		return nil, err
	}

	m := &SessionManager{
		store:  opts.Store,
		secret: append([]byte(nil), opts.SigningSecret...),
		issuer: opts.Issuer,
		clock:  opts.Clock,
	}
	if m.issuer == "" {
		m.issuer = DefaultIssuer
	}
	if m.clock == nil {
		m.clock = clock.Real{}
	}
	return m, nil
}

// Issue creates and stores a session for an authorized identity and returns its signed token.
func (m *SessionManager) Issue(
	ctx context.Context,
	identity domainauth.Identity,
	tenant domainauth.Tenant,
	role domainauth.Role,
) (domainauth.Session, string, error) {
	if role != domainauth.RoleAdmin && role != domainauth.RoleStaff {
		return domainauth.Session{}, "", fmt.Errorf("cannot issue session with role %q", role)
	}
	policy := tenant.SessionPolicy.WithDefaults()
	now := m.clock.Now().UTC().Truncate(time.Second)

	sess := domainauth.Session{
		ID:                     uuid.NewString(),
		SubjectID:              identity.SubjectID,
		Email:                  identity.Email,
		DisplayName:            identity.DisplayName,
		Provider:               identity.Provider,
		TenantID:               tenant.ID,
		Role:                   role,
		IssuedAt:               now,
		LastActivityAt:         now,
		IdleTimeoutSeconds:     policy.IdleTimeoutSeconds,
		AbsoluteTimeoutSeconds: policy.AbsoluteTimeoutSeconds,
	}
	sess.ExpiresAt = sess.ComputeExpiry()

	token, err := m.sign(sess)
	if err != nil {
		return domainauth.Session{}, "", err
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return domainauth.Session{}, "", fmt.Errorf("save session: %w", err)
	}
	return sess, token, nil
}

func (m *SessionManager) sign(sess domainauth.Session) (string, error) {
	claims := sessionClaims{
		SessionID: sess.ID,
		Email:     sess.Email,
		Role:      sess.Role,
		TenantID:  sess.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   sess.SubjectID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.AbsoluteDeadline()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (m *SessionManager) keyFunc(*jwt.Token) (any, error) {
	return m.secret, nil
}

func (m *SessionManager) parse(token string, opts ...jwt.ParserOption) (*sessionClaims, error) {
	var claims sessionClaims
	base := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
		// exp has second precision; the stored ExpiresAt decides the boundary.
		jwt.WithLeeway(time.Second),
	}
	if _, err := jwt.ParseWithClaims(token, &claims, m.keyFunc, append(base, opts...)...); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, errors.New("token has no session id")
	}
	return &claims, nil
}

// Validate resolves a token to its live session.
// It returns ErrSessionExpired once now passes ExpiresAt (the record is
// deleted) and ErrSessionInvalid for bad signatures, unknown or revoked
// sessions and tokens that disagree with the stored record.
func (m *SessionManager) Validate(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, domainauth.ErrSessionInvalid
	}
	claims, err := m.parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domainauth.Session{}, domainauth.ErrSessionExpired
		}
		return domainauth.Session{}, fmt.Errorf("%w: %v", domainauth.ErrSessionInvalid, err)
	}

	sess, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domainauth.Session{}, domainauth.ErrSessionInvalid
		}
		return domainauth.Session{}, fmt.Errorf("get session: %w", err)
	}
	if sess.SubjectID != claims.Subject || sess.Email != claims.Email ||
		sess.TenantID != claims.TenantID || sess.Role != claims.Role {
		return domainauth.Session{}, fmt.Errorf("%w: token does not match session record", domainauth.ErrSessionInvalid)
	}

	if sess.Expired(m.clock.Now()) {
		if delErr := m.store.Delete(ctx, sess.ID); delErr != nil {
			return domainauth.Session{}, errors.Join(domainauth.ErrSessionExpired, fmt.Errorf("delete session: %w", delErr))
		}
		return domainauth.Session{}, domainauth.ErrSessionExpired
	}
	return sess, nil
}

// Touch records activity and slides the idle deadline, never past the absolute one.
// An expired session is not resurrected: Touch returns ErrSessionExpired and stores nothing.
// A session revoked since it was validated stays revoked: Touch returns ErrSessionInvalid.
func (m *SessionManager) Touch(ctx context.Context, sess domainauth.Session) (domainauth.Session, error) {
	now := m.clock.Now()
	if sess.Expired(now) {
		return domainauth.Session{}, domainauth.ErrSessionExpired
	}
	sess.LastActivityAt = now.UTC()
	sess.ExpiresAt = sess.ComputeExpiry()
	if err := m.store.Update(ctx, sess); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domainauth.Session{}, domainauth.ErrSessionInvalid
		}
		return domainauth.Session{}, fmt.Errorf("update session: %w", err)
	}
	return sess, nil
}

// Revoke deletes the session. Revoking an unknown id is not an error.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SessionID extracts the session id from a correctly signed token, even an
// expired one, so logout can revoke it.
func (m *SessionManager) SessionID(token string) (string, error) {
	claims, err := m.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainauth.ErrSessionInvalid, err)
	}
	return claims.SessionID, nil
}
