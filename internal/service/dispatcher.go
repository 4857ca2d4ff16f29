package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/logging"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/transport"
)

// DefaultBatchSize is used when a caller passes a non-positive batch size
const DefaultBatchSize = 50

// DispatchOptions controls batch pacing for one dispatch
type DispatchOptions struct {
	BatchSize  int
	BatchDelay time.Duration
}

// DispatcherConfig holds per-send limits shared by every dispatch
type DispatcherConfig struct {
	SendTimeout time.Duration
	RatePerSec  int
}

// Dispatcher sends one message to an ordered recipient list in sequential
// batches. Recipient failures are recorded, never raised.
type Dispatcher struct {
	sender      transport.Sender
	limiter     *rate.Limiter
	sendTimeout time.Duration
	log         zerolog.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(sender transport.Sender, cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		sendTimeout: cfg.SendTimeout,
		log:         logging.Component(log, "dispatcher"),
	}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return d
}

// Partition splits recipients into contiguous batches of at most size elements
func Partition(recipients []models.Recipient, size int) [][]models.Recipient {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]models.Recipient, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		batches = append(batches, recipients[start:end])
	}
	return batches
}

// Dispatch attempts delivery to every recipient once, in order. When ctx is
// canceled it stops issuing sends and returns the partial outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []models.Recipient, msg models.Message, opts DispatchOptions) models.DispatchOutcome {
	outcome := models.DispatchOutcome{Failures: []models.RecipientFailure{}}
	batches := Partition(recipients, opts.BatchSize)
	log := d.log.With().Str("channel", string(msg.Channel)).Logger()

	for i, batch := range batches {
		if i > 0 && !d.pause(ctx, opts.BatchDelay) {
			return d.canceled(log, outcome, len(recipients))
		}
		outcome.Batches++

		for _, r := range batch {
			if !d.admit(ctx) {
				return d.canceled(log, outcome, len(recipients))
			}
			d.deliver(ctx, log, r, msg, &outcome)
		}

		log.Debug().
			Int("batch", i+1).
			Int("batches", len(batches)).
			Int("size", len(batch)).
			Msg("batch complete")
	}

	return outcome
}

// pause waits out the inter-batch delay; false means ctx was canceled
func (d *Dispatcher) pause(ctx context.Context, delay time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// admit checks cancellation and waits for the optional rate limiter
func (d *Dispatcher) admit(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if d.limiter == nil {
		return true
	}
	return d.limiter.Wait(ctx) == nil
}

func (d *Dispatcher) deliver(ctx context.Context, log zerolog.Logger, r models.Recipient, msg models.Message, outcome *models.DispatchOutcome) {
	sendCtx := ctx
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	start := time.Now()
	err := d.sender.Deliver(sendCtx, r, msg)
	outcome.Attempted++

	if err == nil {
		outcome.Succeeded++
		log.Debug().Func(logging.Recipient(r.Address)).Dur("took", time.Since(start)).Msg("delivered")
		return
	}

	failure := models.RecipientFailure{
		RecipientHash: logging.HashRecipient(r.Address),
		Kind:          transport.Classify(err),
		Detail:        logging.Redact(err.Error(), r.Address),
	}
	outcome.Failures = append(outcome.Failures, failure)
	log.Warn().
		Str("recipient", failure.RecipientHash).
		Str("error_kind", string(failure.Kind)).
		Str("error_detail", failure.Detail).
		Dur("took", time.Since(start)).
		Msg("delivery failed")
}

func (d *Dispatcher) canceled(log zerolog.Logger, outcome models.DispatchOutcome, total int) models.DispatchOutcome {
	outcome.Canceled = true
	outcome.Skipped = total - outcome.Attempted
	log.Warn().
		Int("attempted", outcome.Attempted).
		Int("skipped", outcome.Skipped).
		Msg("dispatch canceled")
	return outcome
}
