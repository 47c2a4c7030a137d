// authserver is the development auth service: magic links, stateless JWT
// sessions and a /auth/me lookup, backed by Postgres.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/safejob-auth/config"
	"github.com/ErlanBelekov/safejob-auth/internal/email"
	"github.com/ErlanBelekov/safejob-auth/internal/health"
	"github.com/ErlanBelekov/safejob-auth/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/safejob-auth/internal/janitor"
	ctxlog "github.com/ErlanBelekov/safejob-auth/internal/log"
	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
	httptransport "github.com/ErlanBelekov/safejob-auth/internal/transport/http"
	"github.com/ErlanBelekov/safejob-auth/internal/transport/http/handler"
	"github.com/ErlanBelekov/safejob-auth/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New("authserver", cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := migrateUp(cfg.DatabaseURL, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	authUsecase := usecase.NewAuthUsecase(userRepo, sender, []byte(cfg.JWTSecret), cfg.MagicLinkBase, usecase.TTLs{
		MagicLink: cfg.MagicLinkTTL(),
		Access:    cfg.AccessTTL(),
		Refresh:   cfg.RefreshTTL(),
	})
	authHandler := handler.NewAuthHandler(authUsecase, logger)

	jan, err := janitor.New(userRepo, cfg.TokenPurgeCron, logger)
	if err != nil {
		stop()
		log.Fatalf("janitor: %v", err)
	}

	metrics.RegisterServer(prometheus.DefaultRegisterer)
	checker := health.NewChecker("authserver", map[string]health.Pinger{"postgres": pool}, logger, prometheus.DefaultRegisterer)

	hsts := cfg.Env != "local"
	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewAuthRouter(logger, authHandler, checker, []byte(cfg.JWTSecret), hsts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go jan.Start(ctx)

	go func() {
		logger.Info("auth server started", "port", cfg.Port)
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
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", "error", err)
		}
	}()

	if err := m.Up(); err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("schema up to date", "version", version, "dirty", dirty)
	return nil
}
