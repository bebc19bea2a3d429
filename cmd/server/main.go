package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/billing-core/internal/config"
	"github.com/diewo77/billing-core/internal/db"
	"github.com/diewo77/billing-core/internal/obs"
	"github.com/diewo77/billing-core/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load configuration (.env first, then the environment)
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := obs.NewLogger(cfg.Log.Format, cfg.Log.Level).With().Str("env", cfg.App.Env).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.ConnectAndMigrate(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database setup failed")
	}
	if *migrateOnlyFlag {
		logger.Info().Msg("migrations completed; exiting as requested")
		return
	}

	handler := server.New(server.Deps{
		DB:       dbConn,
		Logger:   logger,
		Metrics:  obs.NewMetrics(cfg.App.MetricsNamespace, prometheus.DefaultRegisterer),
		Gatherer: prometheus.DefaultGatherer,
	})
	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	if sqlDB, err := dbConn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("server gracefully stopped")
}
