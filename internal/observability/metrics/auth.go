package metrics

import (
	"time"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	obserrors "github.com/nextphaseit/portal-gateway/internal/observability/errors"
	"github.com/nextphaseit/portal-gateway/internal/observability/statsd"
)

// Metric names emitted by the gateway.
const (
	LoginBegin       = "auth.login.begin"
	LoginSuccess     = "auth.login.success"
	LoginFailure     = "auth.login.failure"
	ExchangeDuration = "auth.exchange.duration"
	GuardDecision    = "auth.guard.decision"
	TenantsLoaded    = "auth.tenants.loaded"
)

// LoginMetric describes the end of a callback.
type LoginMetric struct {
	Provider domainauth.ProviderName
	TenantID string
	Duration time.Duration
	Err      error
}

// EmitLoginBegin counts a started login flow.
func EmitLoginBegin(sink statsd.Sink, provider domainauth.ProviderName) {
	if sink == nil {
		return
	}
	sink.Count(LoginBegin, 1, map[string]string{"provider": string(provider)})
}

// EmitLoginResult counts a login success or failure and records the exchange duration.
// Failures carry the browser-facing reason and the error class.
func EmitLoginResult(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"provider": string(in.Provider)}
	if in.Err != nil {
		tags["reason"] = domainauth.FailureReason(in.Err)
		tags["error_class"] = obserrors.Classify(in.Err)
		sink.Count(LoginFailure, 1, tags)
	} else {
		if in.TenantID != "" {
			tags["tenant"] = in.TenantID
		}
		sink.Count(LoginSuccess, 1, tags)
	}
	if in.Duration > 0 {
		sink.Timing(ExchangeDuration, in.Duration, map[string]string{"provider": string(in.Provider)})
	}
}

// EmitGuardDecision counts a route guard verdict.
func EmitGuardDecision(sink statsd.Sink, class domainauth.RouteClass, outcome domainauth.Outcome) {
	if sink == nil {
		return
	}
	sink.Count(GuardDecision, 1, map[string]string{
		"class":   string(class),
		"outcome": string(outcome),
	})
}

// EmitTenantsLoaded reports the registry size at startup.
func EmitTenantsLoaded(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge(TenantsLoaded, float64(n), nil)
}
