// Package main is the entry point for the fieldsync registry server: the
// ingestion API that field clients sync their queued submissions against.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/obi-nwosu/fieldsync/internal/config"
	httpapi "github.com/obi-nwosu/fieldsync/internal/http"
	"github.com/obi-nwosu/fieldsync/internal/ingest"
	"github.com/obi-nwosu/fieldsync/internal/observability"
	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.ServerDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ServerDBPath).Msg("open registry store")
	}
	if err := repo.MigrateServer(db); err != nil {
		log.Fatal().Err(err).Msg("migrate registry store")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin")
		}
	}

	svc := &ingest.Service{DB: db, Log: log.Logger}
	if cfg.FraudWebhookURL != "" {
		svc.Fraud = ingest.NewWebhookNotifier(cfg.FraudWebhookURL, 10*time.Second)
		// Close the crash window: redeliver triggers left in the outbox by a
		// previous run.
		if n, err := svc.DeliverPendingFraudEvents(ctx, 500); err != nil {
			log.Warn().Err(err).Msg("fraud outbox sweep failed")
		} else if n > 0 {
			log.Info().Int("delivered", n).Msg("fraud outbox swept")
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("fieldsync server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
			os.Exit(1)
		}
	}
}

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
