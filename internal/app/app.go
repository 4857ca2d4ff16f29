// Package app wires storage, transport, queue and services from configuration.
// Both binaries build the same graph and differ only in what they run.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/clock"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/config"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/queue"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/scheduler"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/transport"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// App is the wired dependency graph
type App struct {
	Config    *config.Config
	Store     *repository.Store
	Queue     *queue.Connection
	Publisher *queue.Publisher
	Campaigns *service.CampaignService
	Poller    *scheduler.Poller
	Health    *service.HealthChecker
}

// New opens storage and, when enabled, RabbitMQ, then builds the services
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	log.Info().Str("driver", store.Driver).Msg("storage ready")

	a := &App{Config: cfg, Store: store}

	// interface values stay nil when the queue is disabled
	var (
		publisher service.Publisher
		probe     service.QueueProbe
	)
	if cfg.RabbitMQ.Enabled {
		conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		pub, err := queue.NewPublisher(conn, cfg.RabbitMQ.SendQueue, cfg.RabbitMQ.EventsQueue)
		if err != nil {
			_ = conn.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		a.Queue, a.Publisher = conn, pub
		publisher, probe = pub, conn
		log.Info().Str("send_queue", cfg.RabbitMQ.SendQueue).Msg("connected to RabbitMQ")
	}

	sim := transport.NewSimulated(cfg.Transport.SuccessRate, cfg.Transport.MinLatency, cfg.Transport.MaxLatency)
	dispatcher := service.NewDispatcher(
		&transport.Router{Email: sim, SMS: sim},
		service.DispatcherConfig{SendTimeout: cfg.Dispatch.SendTimeout, RatePerSec: cfg.Dispatch.RatePerSec},
		log,
	)

	a.Campaigns = service.NewCampaignService(
		store.Campaigns,
		store.Stats,
		service.NewRecipientResolver(store.Recipients),
		dispatcher,
		publisher,
		clock.System,
		service.PacingConfig{
			Campaign: service.DispatchOptions{BatchSize: cfg.Dispatch.BatchSize, BatchDelay: cfg.Dispatch.BatchDelay},
			AdHoc:    service.DispatchOptions{BatchSize: cfg.Dispatch.AdHocBatchSize, BatchDelay: cfg.Dispatch.AdHocBatchDelay},
		},
		log,
	)
	a.Poller = scheduler.NewPoller(store.Campaigns, a.Campaigns, clock.System, cfg.Scheduler, log)
	a.Health = service.NewHealthService(store, probe, Version)

	return a, nil
}

// Close releases the publisher, the queue connection and storage
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
