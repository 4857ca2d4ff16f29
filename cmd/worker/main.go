package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/app"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/config"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/logging"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/queue"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.Component(logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	if a.Store.Driver == repository.DriverMemory {
		log.Warn().Msg("worker is running against a private in-memory store")
	}

	// Dispatches run on a background context; shutdown drains them through Stop
	runCtx := context.Background()

	if cfg.Scheduler.Enabled {
		a.Poller.Start(runCtx)
	}

	var consumer *queue.Consumer
	if a.Queue != nil {
		consumer, err = queue.NewConsumer(a.Queue, cfg.RabbitMQ.SendQueue, sendHandler(a.Campaigns, log), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create consumer")
		}
		if err := consumer.Start(runCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to start consumer")
		}
	}

	if !cfg.Scheduler.Enabled && consumer == nil {
		log.Fatal().Msg("nothing to run: scheduler and RabbitMQ are both disabled")
	}
	log.Info().
		Bool("scheduler", cfg.Scheduler.Enabled).
		Bool("consumer", consumer != nil).
		Msg("worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop taking new work and let in-flight dispatches finish
	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error stopping consumer")
		}
	}
	a.Poller.Stop(shutdownCtx)

	log.Info().Msg("worker stopped")
}

// sendHandler runs a queued send-now request. Outcomes that a redelivery
// cannot change are marked permanent so the message is dropped.
func sendHandler(campaigns *service.CampaignService, log zerolog.Logger) queue.SendHandler {
	return func(ctx context.Context, req *queue.SendRequest) error {
		l := log.With().Str("request_id", req.RequestID).Int("campaign_id", req.CampaignID).Logger()

		result, err := campaigns.SendNow(ctx, req.CampaignID)
		if err != nil {
			var (
				notFound   *service.NotFoundError
				validation *service.ValidationError
				conflict   *service.SchedulingConflictError
				empty      *service.EmptyAudienceError
				fatal      *service.DispatchFatalError
			)
			switch {
			case errors.As(err, &notFound), errors.As(err, &validation),
				errors.As(err, &conflict), errors.As(err, &empty):
				return queue.Permanent(err)
			case errors.As(err, &fatal) && fatal.Reverted:
				// the poller retries a reverted campaign
				return queue.Permanent(err)
			}
			return err
		}

		l.Info().
			Str("dispatch_id", result.DispatchID).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Msg("queued send complete")
		return nil
	}
}
