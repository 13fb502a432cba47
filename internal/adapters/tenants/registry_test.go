package tenants

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

func TestDefault(t *testing.T) {
	reg := Default()
	tenant, ok := reg.Lookup("NextPhaseIT.org")
	require.True(t, ok)
	assert.Equal(t, "nextphaseit", tenant.ID)
	assert.True(t, tenant.IsAdmin("adrian.knight@nextphaseit.org"))
	assert.True(t, tenant.DomainWide())
	assert.Equal(t, domainauth.DefaultIdleTimeoutSeconds, tenant.SessionPolicy.IdleTimeoutSeconds)
	assert.Len(t, reg.Tenants(), 1)
}

func TestParse(t *testing.T) {
	reg, err := Parse(strings.NewReader(`
tenants:
  - id: acme
    domain: Acme.Test
    admin_emails: [boss@acme.test]
    allowed_emails: [boss@acme.test, clerk@acme.test]
    session_policy:
      idle_timeout_seconds: 600
      absolute_timeout_seconds: 3600
      max_failed_attempts: 3
  - id: buecher
    domain: bücher.test
`))
	require.NoError(t, err)

	acme, ok := reg.Lookup("acme.test")
	require.True(t, ok)
	assert.Equal(t, int64(600), acme.SessionPolicy.IdleTimeoutSeconds)
	assert.Equal(t, 3, acme.SessionPolicy.MaxFailedAttempts)
	assert.False(t, acme.DomainWide())

	_, ok = reg.Lookup("xn--bcher-kva.test")
	assert.True(t, ok, "unicode and punycode spellings resolve to the same tenant")

	_, ok = reg.Lookup("sub.acme.test")
	assert.False(t, ok, "no subdomain matching")

	ids := []string{}
	for _, tn := range reg.Tenants() {
		ids = append(ids, tn.ID)
	}
	assert.Equal(t, []string{"acme", "buecher"}, ids)
}

func TestParse_RejectsInvalidRegistry(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"duplicate domain", `
tenants:
  - {id: a, domain: dup.test}
  - {id: b, domain: DUP.test}
`, `domain "dup.test" is claimed`},
		{"duplicate id", `
tenants:
  - {id: a, domain: one.test}
  - {id: a, domain: two.test}
`, `duplicate tenant id "a"`},
		{"admin not allowed", `
tenants:
  - id: a
    domain: a.test
    admin_emails: [boss@a.test]
    allowed_emails: [clerk@a.test]
`, "is not an allowed email"},
		{"unknown field", `
tenants:
  - {id: a, domain: a.test, admins: [x@a.test]}
`, "decode registry"},
		{"empty", ``, "no tenants"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, domainauth.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	_, ok := reg.Lookup("nextphaseit.org")
	assert.True(t, ok)

	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenants:\n  - {id: x, domain: x.test}\n"), 0o600))
	reg, err = Load(path)
	require.NoError(t, err)
	_, ok = reg.Lookup("x.test")
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, domainauth.ErrConfiguration)
}
