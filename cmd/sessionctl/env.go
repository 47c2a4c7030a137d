package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/safejob-auth/config"
	"github.com/ErlanBelekov/safejob-auth/internal/authapi"
	"github.com/ErlanBelekov/safejob-auth/internal/authclient"
	"github.com/ErlanBelekov/safejob-auth/internal/credstore"
	"github.com/ErlanBelekov/safejob-auth/internal/guard"
	ctxlog "github.com/ErlanBelekov/safejob-auth/internal/log"
	"github.com/ErlanBelekov/safejob-auth/internal/routes"
	"github.com/ErlanBelekov/safejob-auth/internal/session"
)

// remote asks the auth service who an access token belongs to.
type remote interface {
	Me(ctx context.Context, accessToken string) (authapi.MeResponse, error)
}

// env is everything a command needs. It is built once per invocation.
type env struct {
	session *session.Manager
	remote  remote
	nav     *routes.Navigator
	logger  *slog.Logger

	// used by watch; a nil watcher means nobody else writes the store
	watcher      session.Watcher
	refreshEvery time.Duration
}

type envFactory func(ctx context.Context) (*env, error)

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	logger := ctxlog.New("sessionctl", cfg.Env, cfg.SlogLevel())

	credPath, err := cfg.CredentialsFile()
	if err != nil {
		return nil, err
	}

	table, err := routes.NewAppTable(guard.Targets{
		Login:        cfg.LoginPath,
		Unauthorized: cfg.UnauthorizedPath,
		Dashboard:    cfg.DashboardPath,
	}, cfg.HomePath)
	if err != nil {
		return nil, fmt.Errorf("route table: %w", err)
	}

	auth := authclient.New(cfg.AuthBaseURL, cfg.HTTPTimeout(), logger)
	store := credstore.NewFileStore(credPath, logger)
	m := session.NewManager(ctx, auth, store, logger,
		session.WithRefreshSkew(cfg.RefreshSkew()),
		session.WithExchangeTimeout(cfg.HTTPTimeout()),
	)

	return &env{
		session: m,
		remote:  auth,
		nav:     routes.NewNavigator(table, m, logger),
		logger:  logger,

		watcher:      store,
		refreshEvery: cfg.RefreshCheckInterval(),
	}, nil
}
