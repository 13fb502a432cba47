// Package pgxutil exposes the native pgx connection behind a database/sql pool.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

var errNotPgx = errors.New("pool is not backed by the pgx stdlib driver")

// WithPgxConn pins one pooled connection and hands its *pgx.Conn to fn.
// The connection returns to the pool when fn does.
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	sc, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer sc.Close()

	return sc.Raw(func(driverConn any) error {
		if c, ok := driverConn.(*stdlib.Conn); ok {
			return fn(c.Conn())
		}
		return errNotPgx
	})
}
