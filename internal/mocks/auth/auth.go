package auth

// Package auth contains simple hand-written test doubles for gateway ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"net/url"
	"sync"
	"time"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*FakeProvider)(nil)
	_ ports.AuditRecorder    = (*RecordingAuditor)(nil)
)

// FakeProvider simulates an IdP. Exchange returns Identity unless ExchangeFunc is set.
// It records the last ExchangeInput for assertions.
type FakeProvider struct {
	ProviderName domainauth.ProviderName
	AuthURL      string
	Identity     domainauth.Identity
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	mu        sync.Mutex
	exchanges []ports.ExchangeInput
}

// NewFakeProvider creates a FakeProvider returning identity.
func NewFakeProvider(name domainauth.ProviderName, identity domainauth.Identity) *FakeProvider {
	identity.Provider = name
	return &FakeProvider{
		ProviderName: name,
		AuthURL:      "https://idp.test/" + string(name) + "/authorize",
		Identity:     identity,
	}
}

func (f *FakeProvider) Name() domainauth.ProviderName { return f.ProviderName }

func (f *FakeProvider) AuthCodeURL(_ context.Context, in ports.AuthorizeInput) (string, error) {
	q := url.Values{}
	q.Set("state", in.State)
	q.Set("code_challenge", in.CodeChallenge)
	q.Set("code_challenge_method", "S256")
	return f.AuthURL + "?" + q.Encode(), nil
}

func (f *FakeProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	f.mu.Lock()
	f.exchanges = append(f.exchanges, in)
	f.mu.Unlock()
	if f.ExchangeFunc != nil {
		return f.ExchangeFunc(ctx, in)
	}
	return f.Identity, nil
}

// Exchanges returns the inputs Exchange was called with.
func (f *FakeProvider) Exchanges() []ports.ExchangeInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.ExchangeInput(nil), f.exchanges...)
}

// RecordingAuditor keeps events in memory.
type RecordingAuditor struct {
	mu     sync.Mutex
	events []domainauth.Event
	Err    error
}

func (r *RecordingAuditor) Record(_ context.Context, ev domainauth.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns recorded events in order.
func (r *RecordingAuditor) Events() []domainauth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainauth.Event(nil), r.events...)
}

// Metric is one recorded emission.
type Metric struct {
	Kind  string
	Name  string
	Value float64
	Tags  map[string]string
}

// RecordingSink implements statsd.Sink in memory.
type RecordingSink struct {
	mu      sync.Mutex
	metrics []Metric
}

func (s *RecordingSink) Count(name string, v int64, tags map[string]string) {
	s.add(Metric{Kind: "count", Name: name, Value: float64(v), Tags: tags})
}

func (s *RecordingSink) Gauge(name string, v float64, tags map[string]string) {
	s.add(Metric{Kind: "gauge", Name: name, Value: v, Tags: tags})
}

func (s *RecordingSink) Timing(name string, d time.Duration, tags map[string]string) {
	s.add(Metric{Kind: "timing", Name: name, Value: float64(d) / float64(time.Millisecond), Tags: tags})
}

func (s *RecordingSink) add(m Metric) {
	s.mu.Lock()
	s.metrics = append(s.metrics, m)
	s.mu.Unlock()
}

// Named returns emissions with the given name.
func (s *RecordingSink) Named(name string) []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Metric
	for _, m := range s.metrics {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
