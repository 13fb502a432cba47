package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/nextphaseit/portal-gateway/internal/adapters/tenants"
	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

func runTenants(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("tenants", flag.ContinueOnError)
	path := fs.String("file", ctx.Config.Tenants.Path, "tenant registry file (empty uses the built-in registry)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry, err := tenants.Load(*path)
	if err != nil {
		return err
	}
	return printTenants(ctx.Stdout, registry.Tenants())
}

func printTenants(w io.Writer, list []domainauth.Tenant) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tDOMAIN\tADMINS\tALLOWED\tIDLE\tABSOLUTE\tMAX ATTEMPTS"); err != nil {
		return err
	}
	for _, t := range list {
		allowed := "*"
		if len(t.AllowedEmails) > 0 {
			allowed = joinSet(t.AllowedEmails)
		}
		p := t.SessionPolicy
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%ds\t%ds\t%d\n",
			t.ID, t.Domain, joinSet(t.AdminEmails), allowed,
			p.IdleTimeoutSeconds, p.AbsoluteTimeoutSeconds, p.MaxFailedAttempts,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func joinSet(set map[string]struct{}) string {
	if len(set) == 0 {
		return "-"
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
