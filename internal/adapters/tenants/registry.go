package tenants

// Package tenants loads the read-only tenant registry from YAML.

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// tenantFile is the on-disk registry shape.
type tenantFile struct {
	Tenants []tenantEntry `yaml:"tenants"`
}

type tenantEntry struct {
	ID            string                   `yaml:"id"`
	Domain        string                   `yaml:"domain"`
	DisplayName   string                   `yaml:"display_name"`
	AdminEmails   []string                 `yaml:"admin_emails"`
	AllowedEmails []string                 `yaml:"allowed_emails"`
	SessionPolicy domainauth.SessionPolicy `yaml:"session_policy"`
}

// builtin is used when no registry file is configured.
const builtin = `
tenants:
  - id: nextphaseit
    domain: nextphaseit.org
    display_name: NextPhase IT
    admin_emails:
      - adrian.knight@nextphaseit.org
`

// Registry is an immutable domain → tenant index.
type Registry struct {
	byDomain map[string]domainauth.Tenant
	ordered  []domainauth.Tenant
}

var _ ports.TenantRegistry = (*Registry)(nil)

// Default returns the built-in single-tenant registry.
func Default() *Registry {
	r, err := Parse(bytes.NewBufferString(builtin))
	if err != nil {
		panic(err) // static registry; unreachable
	}
	return r
}

// Load reads a registry file. An empty path yields Default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, domainauth.NewConfigurationError("tenants", fmt.Sprintf("open registry: %v", err))
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a registry. Unknown fields, duplicate ids,
// duplicate domains and per-tenant violations are configuration errors.
func Parse(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file tenantFile
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, domainauth.NewConfigurationError("tenants", fmt.Sprintf("decode registry: %v", err))
	}
	return New(file.toTenants())
}

// New builds a registry from tenants, validating registry-wide invariants.
func New(list []domainauth.Tenant) (*Registry, error) {
	var problems []string
	if len(list) == 0 {
		problems = append(problems, "registry has no tenants")
	}

	reg := &Registry{byDomain: make(map[string]domainauth.Tenant, len(list))}
	ids := make(map[string]struct{}, len(list))
	for _, t := range list {
		if err := t.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
		if _, dup := ids[t.ID]; dup && t.ID != "" {
			problems = append(problems, fmt.Sprintf("duplicate tenant id %q", t.ID))
		}
		ids[t.ID] = struct{}{}
		if prev, dup := reg.byDomain[t.Domain]; dup {
			problems = append(problems, fmt.Sprintf("domain %q is claimed by tenants %q and %q", t.Domain, prev.ID, t.ID))
			continue
		}
		reg.byDomain[t.Domain] = t
		reg.ordered = append(reg.ordered, t)
	}
	if err := domainauth.NewConfigurationError("tenants", problems...); err != nil {
		return nil, err
	}
	sort.Slice(reg.ordered, func(i, j int) bool { return reg.ordered[i].ID < reg.ordered[j].ID })
	return reg, nil
}

func (f tenantFile) toTenants() []domainauth.Tenant {
	out := make([]domainauth.Tenant, 0, len(f.Tenants))
	for _, e := range f.Tenants {
		t := domainauth.NewTenant(e.ID, e.Domain, e.AdminEmails, e.AllowedEmails, e.SessionPolicy)
		t.DisplayName = e.DisplayName
		out = append(out, t)
	}
	return out
}

// Lookup finds the tenant registered for domain. domain is canonicalized first.
func (r *Registry) Lookup(domain string) (domainauth.Tenant, bool) {
	t, ok := r.byDomain[domainauth.CanonicalDomain(domain)]
	return t, ok
}

// Tenants returns all tenants ordered by id.
func (r *Registry) Tenants() []domainauth.Tenant {
	return append([]domainauth.Tenant(nil), r.ordered...)
}
