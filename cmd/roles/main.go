// roles writes and lists role records. Roles are never written by the
// functions themselves.
//
//	go run ./cmd/roles -uid abc123 -role admin
//	go run ./cmd/roles -list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/klipach/supportchat/config"
	"github.com/klipach/supportchat/firestoredb"
	"github.com/klipach/supportchat/log"
	"github.com/klipach/supportchat/logger"
	"github.com/klipach/supportchat/role"
)

func main() {
	_ = godotenv.Load()
	uid := flag.String("uid", "", "user id to update")
	roleName := flag.String("role", "", "role to set: admin or user")
	list := flag.Bool("list", false, "list all role records")
	flag.Parse()

	ctx := context.Background()
	l, closeLogger := logger.New(ctx, "roles")
	defer func() { _ = closeLogger() }()
	ctx = log.WithLogger(ctx, l)

	if err := run(ctx, *uid, *roleName, *list); err != nil {
		l.Error("roles failed", slog.String(log.ErrorMsgLogField, err.Error()))
		_ = closeLogger()
		os.Exit(1)
	}
}

func parseRole(s string) (role.Role, error) {
	switch r := role.Role(s); r {
	case role.Admin, role.User:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func run(ctx context.Context, uid, roleName string, list bool) error {
	if !list && uid == "" {
		return errors.New("provide -uid and -role, or -list")
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	store, err := firestoredb.New(ctx, cfg.ProjectID)
	if err != nil {
		return err
	}
	defer store.Close()

	if uid != "" {
		r, err := parseRole(roleName)
		if err != nil {
			return err
		}
		if err := store.SetRole(ctx, uid, r); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		if cfg.RedisURL != "" {
			if err := invalidate(ctx, cfg, uid); err != nil {
				log.LoggerFromContext(ctx).Warn("role cache not invalidated", slog.String(log.ErrorMsgLogField, err.Error()))
			}
		}
		log.LoggerFromContext(ctx).Info("role set", slog.String(log.UserIDLogField, uid), slog.String(log.RoleLogField, string(r)))
	}

	if list {
		records, err := store.RoleRecords(ctx)
		if err != nil {
			return fmt.Errorf("list roles: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UID\tROLE")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\n", rec.UserID, role.Parse(rec.Role))
		}
		return w.Flush()
	}
	return nil
}

func invalidate(ctx context.Context, cfg config.Config, uid string) error {
	cache, err := role.NewRedisCache(ctx, cfg.RedisURL, cfg.RoleCacheTTL)
	if err != nil {
		return err
	}
	defer cache.Close()
	return cache.Invalidate(ctx, uid)
}
