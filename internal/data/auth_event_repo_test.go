package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextphaseit/portal-gateway/internal/clock"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/testutil"
)

func TestAuthEventRepo_NoDB(t *testing.T) {
	repo := NewAuthEventRepo(nil)
	assert.ErrorIs(t, repo.Record(context.Background(), domainauth.Event{}), ErrDBRequired)
	_, err := repo.Recent(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrDBRequired)
}

func TestAuthEventRepo_RecordAndRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	base := testutil.FixedTime()
	fixed := clock.NewFixed(base)
	repo := NewAuthEventRepo(db).WithClock(fixed)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, domainauth.Event{
		Kind:     domainauth.EventLoginFailure,
		Provider: domainauth.ProviderMicrosoft,
		Email:    "outsider@other.org",
		Reason:   domainauth.ReasonUnauthorizedDomain,
	}))
	fixed.Add(time.Minute)
	require.NoError(t, repo.Record(ctx, domainauth.Event{
		Kind:      domainauth.EventLoginSuccess,
		Provider:  domainauth.ProviderMicrosoft,
		Email:     "staff@nextphaseit.org",
		TenantID:  "nextphaseit",
		SessionID: "sess-1",
	}))

	all, err := repo.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domainauth.EventLoginSuccess, all[0].Kind, "newest first")
	assert.True(t, all[0].OccurredAt.Equal(base.Add(time.Minute)))

	one, err := repo.Recent(ctx, "Outsider@Other.org", 10)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, domainauth.ReasonUnauthorizedDomain, one[0].Reason)
}
