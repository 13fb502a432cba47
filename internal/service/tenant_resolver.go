package service

import (
	"fmt"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// TenantResolver maps an email address to its tenant by exact domain.
type TenantResolver struct {
	registry ports.TenantRegistry
}

// NewTenantResolver constructs a resolver over registry.
func NewTenantResolver(registry ports.TenantRegistry) *TenantResolver {
	return &TenantResolver{registry: registry}
}

// Resolve returns the tenant owning the domain after the last "@" of email.
// Subdomains do not match their parent. Unknown domains return ErrTenantNotFound.
func (r *TenantResolver) Resolve(email string) (domainauth.Tenant, error) {
	domain := domainauth.EmailDomain(email)
	if domain == "" {
		return domainauth.Tenant{}, fmt.Errorf("%w: email has no domain", domainauth.ErrTenantNotFound)
	}
	t, ok := r.registry.Lookup(domain)
	if !ok {
		return domainauth.Tenant{}, fmt.Errorf("%w: %s", domainauth.ErrTenantNotFound, domain)
	}
	return t, nil
}

// MaxFailedAttempts returns the lockout threshold of email's tenant, or the default.
func (r *TenantResolver) MaxFailedAttempts(email string) int {
	t, err := r.Resolve(email)
	if err != nil {
		return domainauth.DefaultMaxFailedAttempts
	}
	return t.SessionPolicy.WithDefaults().MaxFailedAttempts
}

// Tenants lists the registry.
func (r *TenantResolver) Tenants() []domainauth.Tenant {
	return r.registry.Tenants()
}
