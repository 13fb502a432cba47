package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

func TestSessionStore_SaveGetDelete(t *testing.T) {
	store := NewSessionStore()
	defer store.Close()
	ctx := context.Background()

	sess := domainauth.Session{
		ID:        "sess-1",
		Email:     "staff@nextphaseit.org",
		Role:      domainauth.RoleStaff,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Email, got.Email)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionStore_RejectsInvalid(t *testing.T) {
	store := NewSessionStore()
	defer store.Close()
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, domainauth.Session{ExpiresAt: time.Now().Add(time.Minute)}))
	assert.Error(t, store.Save(ctx, domainauth.Session{ID: "old", ExpiresAt: time.Now().Add(-2 * domainauth.RecordGrace)}))
}

func TestSessionStore_RetainsPastIdleDeadline(t *testing.T) {
	store := NewSessionStore()
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	sess := domainauth.Session{
		ID:                     "idle",
		IssuedAt:               now,
		LastActivityAt:         now,
		AbsoluteTimeoutSeconds: 900,
		ExpiresAt:              now.Add(-time.Second),
	}
	require.NoError(t, store.Save(ctx, sess))
	_, err := store.Get(ctx, "idle")
	assert.NoError(t, err, "expiry is the manager's call")
}

func TestSessionStore_Update(t *testing.T) {
	store := NewSessionStore()
	defer store.Close()
	ctx := context.Background()

	sess := domainauth.Session{ID: "sess-u", Email: "staff@nextphaseit.org", ExpiresAt: time.Now().Add(time.Minute)}
	assert.ErrorIs(t, store.Update(ctx, sess), ports.ErrNotFound, "update never creates")
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Save(ctx, sess))
	sess.DisplayName = "Staff Member"
	require.NoError(t, store.Update(ctx, sess))
	got, err := store.Get(ctx, "sess-u")
	require.NoError(t, err)
	assert.Equal(t, "Staff Member", got.DisplayName)

	require.NoError(t, store.Delete(ctx, "sess-u"))
	assert.ErrorIs(t, store.Update(ctx, sess), ports.ErrNotFound)
	_, err = store.Get(ctx, "sess-u")
	assert.ErrorIs(t, err, ports.ErrNotFound, "deleted record is not written back")
}

func TestSessionStore_ExpiresWithTTL(t *testing.T) {
	store := NewSessionStore()
	defer store.Close()
	ctx := context.Background()

	// retention ends RecordGrace after ExpiresAt
	expires := time.Now().Add(-domainauth.RecordGrace + 50*time.Millisecond)
	require.NoError(t, store.Save(ctx, domainauth.Session{ID: "short", ExpiresAt: expires}))
	time.Sleep(100 * time.Millisecond)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPKCEStore_ConsumeOnce(t *testing.T) {
	store := NewPKCEStore()
	defer store.Close()
	ctx := context.Background()

	st := domainauth.PKCEState{State: "abc", CodeVerifier: "verifier", Provider: domainauth.ProviderAuth0, CreatedAt: time.Now()}
	require.NoError(t, store.Save(ctx, st, 10*time.Minute))

	got, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "verifier", got.CodeVerifier)

	_, err = store.Consume(ctx, "abc")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = store.Consume(ctx, "never-issued")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPKCEStore_ConcurrentConsume(t *testing.T) {
	store := NewPKCEStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.PKCEState{State: "race", CreatedAt: time.Now()}, time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestPKCEStore_Validation(t *testing.T) {
	store := NewPKCEStore()
	defer store.Close()
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, domainauth.PKCEState{}, time.Minute))
	assert.Error(t, store.Save(ctx, domainauth.PKCEState{State: "x"}, 0))
}

func TestLoginAttempts(t *testing.T) {
	attempts := NewLoginAttempts(time.Minute)
	defer attempts.Close()

	for range 2 {
		require.NoError(t, attempts.Check("demo@nextphaseit.org", 3))
		attempts.Fail("Demo@NextPhaseIT.org")
	}
	require.NoError(t, attempts.Check("demo@nextphaseit.org", 3))
	attempts.Fail("demo@nextphaseit.org")
	assert.ErrorIs(t, attempts.Check("demo@nextphaseit.org", 3), domainauth.ErrTooManyAttempts)
	assert.NoError(t, attempts.Check("other@nextphaseit.org", 3))

	attempts.Reset("demo@nextphaseit.org")
	assert.NoError(t, attempts.Check("demo@nextphaseit.org", 3))
	assert.NoError(t, attempts.Check("demo@nextphaseit.org", 0), "zero limit disables lockout")
}
