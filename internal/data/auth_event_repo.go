package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nextphaseit/portal-gateway/internal/clock"
	"github.com/nextphaseit/portal-gateway/internal/data/pgxutil"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	apperrors "github.com/nextphaseit/portal-gateway/internal/errors"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// ErrDBRequired is returned when a repository is built without a database handle.
var ErrDBRequired = errors.New("database handle is required")

// AuthEventRepo records authentication audit events in Postgres.
type AuthEventRepo struct {
	DB    *sql.DB
	clock clock.Clock
}

var _ ports.AuditRecorder = (*AuthEventRepo)(nil)

// NewAuthEventRepo creates a repository over db.
func NewAuthEventRepo(db *sql.DB) *AuthEventRepo {
	return &AuthEventRepo{DB: db, clock: clock.Real{}}
}

// WithClock overrides the clock used for events without OccurredAt.
func (r *AuthEventRepo) WithClock(c clock.Clock) *AuthEventRepo {
	if c != nil {
		r.clock = c
	}
	return r
}

const authEventColumns = `kind, provider, email, tenant_id, session_id, reason, remote_addr, occurred_at`

// Record inserts ev. Database errors are mapped through MapDBError.
func (r *AuthEventRepo) Record(ctx context.Context, ev domainauth.Event) error {
	if r.DB == nil {
		return ErrDBRequired
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = r.clock.Now()
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx,
			`INSERT INTO auth_events (id, `+authEventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), string(ev.Kind), string(ev.Provider), ev.Email, ev.TenantID,
			ev.SessionID, ev.Reason, ev.RemoteAddr, ev.OccurredAt.UTC(),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("record auth event: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty email lists all.
func (r *AuthEventRepo) Recent(ctx context.Context, email string, limit int) ([]domainauth.Event, error) {
	if r.DB == nil {
		return nil, ErrDBRequired
	}
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	var out []domainauth.Event
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx,
			`SELECT `+authEventColumns+` FROM auth_events
			 WHERE ($1 = '' OR email = $1)
			 ORDER BY occurred_at DESC LIMIT $2`,
			domainauth.NormalizeEmail(email), limit,
		)
		if qErr != nil {
			return qErr
		}
		var collectErr error
		out, collectErr = pgx.CollectRows(rows, scanAuthEvent)
		return collectErr
	})
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

func scanAuthEvent(row pgx.CollectableRow) (domainauth.Event, error) {
	var (
		ev             domainauth.Event
		kind, provider string
	)
	err := row.Scan(&kind, &provider, &ev.Email, &ev.TenantID, &ev.SessionID, &ev.Reason, &ev.RemoteAddr, &ev.OccurredAt)
	ev.Kind = domainauth.EventKind(kind)
	ev.Provider = domainauth.ProviderName(provider)
	return ev, err
}
