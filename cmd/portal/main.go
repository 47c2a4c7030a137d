// portal serves the Safe Job app shell. Every page navigation passes through
// the route guard against the locally held session.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/safejob-auth/config"
	"github.com/ErlanBelekov/safejob-auth/internal/authclient"
	"github.com/ErlanBelekov/safejob-auth/internal/credstore"
	"github.com/ErlanBelekov/safejob-auth/internal/guard"
	"github.com/ErlanBelekov/safejob-auth/internal/health"
	ctxlog "github.com/ErlanBelekov/safejob-auth/internal/log"
	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
	"github.com/ErlanBelekov/safejob-auth/internal/routes"
	"github.com/ErlanBelekov/safejob-auth/internal/session"
	httptransport "github.com/ErlanBelekov/safejob-auth/internal/transport/http"
	"github.com/ErlanBelekov/safejob-auth/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New("portal", cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	credPath, err := cfg.CredentialsFile()
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}

	targets := guard.Targets{
		Login:        cfg.LoginPath,
		Unauthorized: cfg.UnauthorizedPath,
		Dashboard:    cfg.DashboardPath,
	}
	table, err := routes.NewAppTable(targets, cfg.HomePath)
	if err != nil {
		log.Fatalf("route table: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	metrics.RegisterClient(prometheus.DefaultRegisterer)

	auth := authclient.New(cfg.AuthBaseURL, cfg.HTTPTimeout(), logger)
	store := credstore.NewFileStore(credPath, logger)
	manager := session.NewManager(ctx, auth, store, logger,
		session.WithRefreshSkew(cfg.RefreshSkew()),
		session.WithExchangeTimeout(cfg.HTTPTimeout()),
	)

	// sessionctl and other portal instances share the credential file
	following := make(chan struct{})
	go func() {
		defer close(following)
		session.Follow(ctx, manager, store, cfg.RefreshCheckInterval(), logger)
	}()

	nav := routes.NewNavigator(table, manager, logger)
	pages := handler.NewPortalHandler(manager, table, logger)
	checker := health.NewChecker("portal", map[string]health.Pinger{"auth": auth}, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:              ":" + cfg.PortalPort,
		Handler:           httptransport.NewPortalRouter(logger, nav, pages, cfg.Env != "local"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("portal started", "port", cfg.PortalPort, "auth", cfg.AuthBaseURL, "credentials", credPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	<-following
	manager.Close()
}
