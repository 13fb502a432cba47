package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/oauth2"

	"github.com/nextphaseit/portal-gateway/internal/clock"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/observability/metrics"
	"github.com/nextphaseit/portal-gateway/internal/observability/statsd"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// Login flow defaults.
const (
	DefaultStateTTL        = 10 * time.Minute
	DefaultExchangeTimeout = 10 * time.Second
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Providers []ports.IdentityProvider
	// ProviderErrors holds configured providers that failed validation. Logins
	// through them fail closed with the stored ConfigurationError.
	ProviderErrors map[domainauth.ProviderName]error

	States          ports.PKCEStore
	StateTTL        time.Duration
	ExchangeTimeout time.Duration

	Tenants  *TenantResolver
	Sessions *SessionManager
	Audit    ports.AuditRecorder
	Metrics  statsd.Sink
	Clock    clock.Clock
	Logger   *slog.Logger
}

// AuthService runs the login pipeline: provider flow, tenant resolution,
// policy evaluation and session issuance.
type AuthService struct {
	providers       map[domainauth.ProviderName]ports.IdentityProvider
	providerErrors  map[domainauth.ProviderName]error
	states          ports.PKCEStore
	stateTTL        time.Duration
	exchangeTimeout time.Duration
	tenants         *TenantResolver
	sessions        *SessionManager
	audit           ports.AuditRecorder
	metrics         statsd.Sink
	clock           clock.Clock
	logger          *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.States == nil || opts.Tenants == nil || opts.Sessions == nil {
		return nil, errors.New("auth service requires state store, tenant resolver and session manager")
	}
	s := &AuthService{
		providers:       make(map[domainauth.ProviderName]ports.IdentityProvider, len(opts.Providers)),
		providerErrors:  make(map[domainauth.ProviderName]error, len(opts.ProviderErrors)),
		states:          opts.States,
		stateTTL:        opts.StateTTL,
		exchangeTimeout: opts.ExchangeTimeout,
		tenants:         opts.Tenants,
		sessions:        opts.Sessions,
		audit:           opts.Audit,
		metrics:         opts.Metrics,
		clock:           opts.Clock,
		logger:          opts.Logger,
	}
	for _, p := range opts.Providers {
		s.providers[p.Name()] = p
	}
	for name, err := range opts.ProviderErrors {
		if err != nil {
			s.providerErrors[name] = err
		}
	}
	if s.stateTTL <= 0 || s.stateTTL > DefaultStateTTL {
		s.stateTTL = DefaultStateTTL
	}
	if s.exchangeTimeout <= 0 {
		s.exchangeTimeout = DefaultExchangeTimeout
	}
	if s.audit == nil {
		s.audit = NopAuditRecorder{}
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Providers lists the usable providers, sorted by name.
func (s *AuthService) Providers() []domainauth.ProviderName {
	out := make([]domainauth.ProviderName, 0, len(s.providers))
	for name := range s.providers {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConfigurationErrors returns the validation errors of misconfigured providers.
func (s *AuthService) ConfigurationErrors() []error {
	names := make([]string, 0, len(s.providerErrors))
	for name := range s.providerErrors {
		names = append(names, string(name))
	}
	sort.Strings(names)
	out := make([]error, 0, len(names))
	for _, n := range names {
		out = append(out, s.providerErrors[domainauth.ProviderName(n)])
	}
	return out
}

func (s *AuthService) provider(name domainauth.ProviderName) (ports.IdentityProvider, error) {
	if err, ok := s.providerErrors[name]; ok {
		return nil, err
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domainauth.ErrUnknownProvider, name)
	}
	return p, nil
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
}

// BeginLogin creates a PKCE verifier and state, stores them, and returns the
// provider authorization URL. returnTo must already be a safe local path.
func (s *AuthService) BeginLogin(ctx context.Context, provider domainauth.ProviderName, returnTo string) (*BeginLoginResult, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}

	state, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()
	if returnTo == "" {
		returnTo = "/"
	}

	authURL, err := p.AuthCodeURL(ctx, ports.AuthorizeInput{
		State:         state,
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
	})
	if err != nil {
		return nil, fmt.Errorf("build authorization url: %w", err)
	}

	st := domainauth.PKCEState{
		State:        state,
		CodeVerifier: verifier,
		Provider:     provider,
		ReturnTo:     returnTo,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.states.Save(ctx, st, s.stateTTL); err != nil {
		return nil, fmt.Errorf("save login state: %w", err)
	}

	metrics.EmitLoginBegin(s.metrics, provider)
	return &BeginLoginResult{AuthURL: authURL, State: state}, nil
}

// VerifyCallback consumes the stored state and exchanges the code.
// The state is consumed first, so it is gone on every failure path,
// an unknown or misconfigured provider included.
func (s *AuthService) VerifyCallback(
	ctx context.Context,
	provider domainauth.ProviderName,
	code, state string,
) (domainauth.Identity, domainauth.PKCEState, error) {
	st, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domainauth.Identity{}, domainauth.PKCEState{}, domainauth.ErrInvalidState
		}
		return domainauth.Identity{}, domainauth.PKCEState{}, fmt.Errorf("consume login state: %w", err)
	}
	if st.Expired(s.clock.Now(), s.stateTTL) {
		return domainauth.Identity{}, st, fmt.Errorf("%w: state is older than %s", domainauth.ErrInvalidState, s.stateTTL)
	}
	if st.Provider != provider {
		return domainauth.Identity{}, st, fmt.Errorf("%w: state was issued for %s", domainauth.ErrInvalidState, st.Provider)
	}
	p, err := s.provider(provider)
	if err != nil {
		return domainauth.Identity{}, st, err
	}
	if code == "" {
		return domainauth.Identity{}, st, fmt.Errorf("%w: authorization code is required", domainauth.ErrTokenExchangeFailed)
	}

	xctx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancel()
	identity, err := p.Exchange(xctx, ports.ExchangeInput{Code: code, CodeVerifier: st.CodeVerifier})
	if err != nil {
		return domainauth.Identity{}, st, err
	}
	return identity, st, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Provider   domainauth.ProviderName
	Code       string
	State      string
	RemoteAddr string
}

// CompleteLoginResult contains the issued session and where to send the browser.
type CompleteLoginResult struct {
	Session  domainauth.Session
	Token    string
	ReturnTo string
}

// CompleteLogin verifies the callback, resolves the tenant, evaluates policy
// and issues a session. Every outcome is audited.
func (s *AuthService) CompleteLogin(ctx context.Context, in CompleteLoginInput) (*CompleteLoginResult, error) {
	started := s.clock.Now()
	res, identity, err := s.completeLogin(ctx, in)

	metric := metrics.LoginMetric{Provider: in.Provider, Duration: s.clock.Now().Sub(started), Err: err}
	ev := domainauth.Event{
		Provider:   in.Provider,
		Email:      identity.Email,
		RemoteAddr: in.RemoteAddr,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err != nil {
		ev.Kind = domainauth.EventLoginFailure
		ev.Reason = domainauth.FailureReason(err)
		s.logger.WarnContext(ctx, "login failed",
			"provider", in.Provider,
			"reason", ev.Reason,
			"email", identity.Email,
			"error", err,
		)
	} else {
		ev.Kind = domainauth.EventLoginSuccess
		ev.TenantID = res.Session.TenantID
		ev.SessionID = res.Session.ID
		metric.TenantID = res.Session.TenantID
		s.logger.InfoContext(ctx, "login succeeded",
			"provider", in.Provider,
			"tenant", res.Session.TenantID,
			"role", res.Session.Role,
		)
	}
	metrics.EmitLoginResult(s.metrics, metric)
	s.record(ctx, ev)
	return res, err
}

func (s *AuthService) completeLogin(ctx context.Context, in CompleteLoginInput) (*CompleteLoginResult, domainauth.Identity, error) {
	identity, st, err := s.VerifyCallback(ctx, in.Provider, in.Code, in.State)
	if err != nil {
		return nil, identity, err
	}

	tenant, err := s.tenants.Resolve(identity.Email)
	if err != nil {
		return nil, identity, fmt.Errorf("%w: %w", domainauth.ErrUnauthorizedDomain, err)
	}
	decision := domainauth.Evaluate(identity, &tenant)
	if !decision.Authorized {
		return nil, identity, fmt.Errorf("%w: %s is not allowed in tenant %s", domainauth.ErrUnauthorizedDomain, identity.Email, tenant.ID)
	}

	sess, token, err := s.sessions.Issue(ctx, identity, tenant, decision.Role)
	if err != nil {
		return nil, identity, fmt.Errorf("issue session: %w", err)
	}
	return &CompleteLoginResult{Session: sess, Token: token, ReturnTo: st.ReturnTo}, identity, nil
}

// Logout revokes the session named by token. Invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token, remoteAddr string) error {
	if token == "" {
		return nil
	}
	id, err := s.sessions.SessionID(token)
	if err != nil {
		return nil //nolint:nilerr // an unreadable cookie has nothing to revoke
	}
	if err := s.sessions.Revoke(ctx, id); err != nil {
		return err
	}
	s.record(ctx, domainauth.Event{
		Kind:       domainauth.EventLogout,
		SessionID:  id,
		RemoteAddr: remoteAddr,
		OccurredAt: s.clock.Now().UTC(),
	})
	return nil
}

func (s *AuthService) record(ctx context.Context, ev domainauth.Event) {
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "failed to record auth event", "kind", ev.Kind, "error", err)
	}
}

// randomToken returns n random bytes, URL-safe base64 encoded.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
