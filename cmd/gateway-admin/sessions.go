package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/nextphaseit/portal-gateway/config"
	redisadapter "github.com/nextphaseit/portal-gateway/internal/adapters/redis"
	"github.com/nextphaseit/portal-gateway/internal/bootstrap"
)

var errMemoryStore = errors.New("sessions live in gateway memory (SESSION_STORE=memory); restart the gateway to revoke them")

func runRevokeSession(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("revoke-session", flag.ContinueOnError)
	id := fs.String("id", "", "session ID (the sid claim of the session token)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	if ctx.Config.Session.Store != config.StoreRedis {
		return errMemoryStore
	}

	client, err := bootstrap.ConnectRedis(ctx.Ctx, ctx.Config.Redis, ctx.Logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			ctx.Logger.Error("close redis failed", "error", cerr)
		}
	}()

	if err := redisadapter.NewSessionStoreWithPrefix(client, ctx.Config.Redis.SessionPrefix()).Delete(ctx.Ctx, *id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	ctx.Logger.InfoContext(ctx.Ctx, "session revoked", "session_id", *id)
	return nil
}
