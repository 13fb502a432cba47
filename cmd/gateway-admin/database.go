package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nextphaseit/portal-gateway/internal/bootstrap"
	"github.com/nextphaseit/portal-gateway/internal/data"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

const defaultMigrationTimeout = 5 * time.Minute

func connectDB(ctx *commandContext) (*sql.DB, func(), error) {
	db, err := bootstrap.ConnectDB(ctx.Ctx, ctx.Config.Postgres, ctx.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return db, func() {
		if cerr := db.Close(); cerr != nil {
			ctx.Logger.Error("close database failed", "error", cerr)
		}
	}, nil
}

func runMigrations(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "maximum time to wait for migrations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, closeDB, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	migCtx, cancel := context.WithTimeout(ctx.Ctx, *timeout)
	defer cancel()
	return bootstrap.RunMigrations(migCtx, db, ctx.Logger)
}

func runAudit(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	email := fs.String("email", "", "only list events for this email")
	limit := fs.Int("limit", 50, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, closeDB, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	events, err := data.NewAuthEventRepo(db).Recent(ctx.Ctx, *email, *limit)
	if err != nil {
		return err
	}
	return printEvents(ctx.Stdout, events)
}

func printEvents(w io.Writer, events []domainauth.Event) error {
	if len(events) == 0 {
		return writef(w, "no events\n")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "TIME\tKIND\tPROVIDER\tEMAIL\tTENANT\tREASON\tREMOTE"); err != nil {
		return err
	}
	for _, ev := range events {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.OccurredAt.UTC().Format(time.RFC3339), ev.Kind, ev.Provider,
			orDash(ev.Email), orDash(ev.TenantID), orDash(ev.Reason), orDash(ev.RemoteAddr),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
