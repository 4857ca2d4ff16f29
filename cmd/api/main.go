package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/app"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/config"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/handler"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/logging"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.Component(logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}), "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	// the worker cannot see an in-memory store, so the API polls itself.
	// Ticks run on a background context; shutdown drains them through Stop.
	if cfg.Scheduler.Enabled && a.Store.Driver == repository.DriverMemory {
		a.Poller.Start(context.Background())
	}

	router := handler.NewRouter(handler.Handlers{
		Campaigns: handler.NewCampaignHandler(a.Campaigns),
		Preview:   handler.NewPreviewHandler(a.Campaigns),
		Messages:  handler.NewMessageHandler(a.Campaigns),
		Scheduler: handler.NewSchedulerHandler(a.Poller),
		Health:    handler.NewHealthHandler(a.Health),
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Env).
			Str("version", app.Version).
			Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown waits for in-flight send requests, which run detached from their clients
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	a.Poller.Stop(shutdownCtx)

	log.Info().Msg("API server stopped")
}
