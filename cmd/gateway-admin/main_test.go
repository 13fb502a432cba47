package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nextphaseit/portal-gateway/config"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

func newTestContext(stdin string) (*commandContext, *bytes.Buffer) {
	var out bytes.Buffer
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
	}, &out
}

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	out := buf.String()
	assert.Contains(t, out, "Usage: gateway-admin <command>")
	assert.Less(t, strings.Index(out, "audit"), strings.Index(out, "tenants"))
	assert.Contains(t, out, "revoke-session")
}

func TestRunTenants_Builtin(t *testing.T) {
	ctx, out := newTestContext("")
	require.NoError(t, runTenants(ctx, nil))
	assert.Contains(t, out.String(), "nextphaseit.org")
	assert.Contains(t, out.String(), "adrian.knight@nextphaseit.org")
	assert.Contains(t, out.String(), "1800s")
}

func TestRunTenants_MissingFile(t *testing.T) {
	ctx, _ := newTestContext("")
	err := runTenants(ctx, []string{"-file", t.TempDir() + "/nope.yaml"})
	require.ErrorIs(t, err, domainauth.ErrConfiguration)
}

func TestPrintTenants_AllowList(t *testing.T) {
	tenant := domainauth.NewTenant("acme", "acme.test",
		[]string{"boss@acme.test"}, []string{"clerk@acme.test", "boss@acme.test"}, domainauth.SessionPolicy{})
	var buf bytes.Buffer
	require.NoError(t, printTenants(&buf, []domainauth.Tenant{tenant}))
	assert.Contains(t, buf.String(), "boss@acme.test,clerk@acme.test")
}

func TestRunHashPassword(t *testing.T) {
	ctx, out := newTestContext("hunter2hunter2\n")
	require.NoError(t, runHashPassword(ctx, []string{"-email", "staff@nextphaseit.org"}))

	email, hash, ok := strings.Cut(strings.TrimSpace(out.String()), ":")
	require.True(t, ok)
	assert.Equal(t, "staff@nextphaseit.org", email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2hunter2")))

	var users config.DemoUsers
	require.NoError(t, users.UnmarshalText(out.Bytes()))
	require.Len(t, users, 1)
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret pass\r\nignored"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret pass", pw)

	_, err = readPassword(strings.NewReader(""))
	require.Error(t, err)
}

func TestRunRevokeSession_Validation(t *testing.T) {
	ctx, _ := newTestContext("")
	require.Error(t, runRevokeSession(ctx, nil))
	require.ErrorIs(t, runRevokeSession(ctx, []string{"-id", "abc"}), errMemoryStore)
}

func TestPrintEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printEvents(&buf, nil))
	assert.Equal(t, "no events\n", buf.String())

	buf.Reset()
	require.NoError(t, printEvents(&buf, []domainauth.Event{{
		Kind:       domainauth.EventLoginFailure,
		Provider:   domainauth.ProviderMicrosoft,
		Email:      "outsider@other.org",
		Reason:     domainauth.ReasonUnauthorizedDomain,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}))
	out := buf.String()
	assert.Contains(t, out, "2026-01-02T03:04:05Z")
	assert.Contains(t, out, "login_failure")
	assert.Contains(t, out, "outsider@other.org")
}
