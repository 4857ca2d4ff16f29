// Package scheduler runs the due-campaign poller.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/clock"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/config"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/logging"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
)

// ErrTickInProgress is returned when a tick is requested while another is still running
var ErrTickInProgress = errors.New("a scheduler tick is already in progress")

// DueLister finds campaigns whose scheduled time has passed
type DueLister interface {
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error)
}

// Runner dispatches one campaign. *service.CampaignService satisfies it.
type Runner interface {
	DispatchCampaign(ctx context.Context, c *models.Campaign) (*service.DispatchResult, error)
}

// Result labels for a campaign processed by a tick
const (
	ResultSent          = "sent"
	ResultConflict      = "conflict"
	ResultEmptyAudience = "empty_audience"
	ResultInvalid       = "invalid"
	ResultFailed        = "failed"
)

// CampaignResult is what happened to one due campaign
type CampaignResult struct {
	CampaignID int    `json:"campaign_id"`
	Result     string `json:"result"`
	DispatchID string `json:"dispatch_id,omitempty"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// TickReport summarizes one poll cycle
type TickReport struct {
	StartedAt  time.Time        `json:"started_at"`
	Due        int              `json:"due"`
	Dispatched int              `json:"dispatched"`
	Errors     int              `json:"errors"`
	Campaigns  []CampaignResult `json:"campaigns"`
	Took       time.Duration    `json:"took_ns"`
}

// Poller promotes due scheduled campaigns to dispatch. At most one tick runs
// at a time, whether it was started by the cron schedule or by Tick directly.
type Poller struct {
	campaigns DueLister
	runner    Runner
	clock     clock.Clock
	cfg       config.SchedulerConfig
	log       zerolog.Logger

	running atomic.Bool

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPoller creates a poller. A nil clock means the system clock.
func NewPoller(campaigns DueLister, runner Runner, clk clock.Clock, cfg config.SchedulerConfig, log zerolog.Logger) *Poller {
	if clk == nil {
		clk = clock.System
	}
	return &Poller{
		campaigns: campaigns,
		runner:    runner,
		clock:     clk,
		cfg:       cfg,
		log:       logging.Component(log, "scheduler"),
	}
}

// Tick runs one poll cycle: list due campaigns and dispatch them one at a time.
// A failure on one campaign never stops the rest of the cycle.
func (p *Poller) Tick(ctx context.Context) (*TickReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrTickInProgress
	}
	defer p.running.Store(false)

	start := time.Now()
	now := p.clock.Now()
	due, err := p.campaigns.ListDueScheduled(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	report := &TickReport{StartedAt: now, Due: len(due), Campaigns: []CampaignResult{}}
	if len(due) == 0 {
		p.log.Debug().Time("now", now).Msg("no due campaigns")
		return report, nil
	}

	for _, c := range due {
		if ctx.Err() != nil {
			p.log.Warn().Int("remaining", len(due)-len(report.Campaigns)).Msg("tick canceled")
			break
		}
		res := p.process(ctx, c)
		if res.Result == ResultSent {
			report.Dispatched++
		}
		if res.Result == ResultFailed {
			report.Errors++
		}
		report.Campaigns = append(report.Campaigns, res)
	}

	report.Took = time.Since(start)
	p.log.Info().
		Int("due", report.Due).
		Int("dispatched", report.Dispatched).
		Int("errors", report.Errors).
		Dur("took", report.Took).
		Msg("tick complete")
	return report, nil
}

// process dispatches a single campaign and turns any error or panic into a result
func (p *Poller) process(ctx context.Context, c *models.Campaign) (res CampaignResult) {
	res.CampaignID = c.ID
	log := p.log.With().Int("campaign_id", c.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.Result = ResultFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error().Interface("panic", r).Msg("campaign dispatch panicked")
		}
	}()

	result, err := p.runner.DispatchCampaign(ctx, c)
	if err == nil {
		res.Result = ResultSent
		res.DispatchID = result.DispatchID
		res.Sent = result.Sent
		res.Failed = result.Failed
		return res
	}

	res.Error = err.Error()
	var (
		conflict *service.SchedulingConflictError
		empty    *service.EmptyAudienceError
		invalid  *service.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		res.Result = ResultConflict
		log.Info().Str("status", string(conflict.Status)).Msg("campaign already claimed, skipping")
	case errors.As(err, &empty):
		res.Result = ResultEmptyAudience
		log.Warn().Msg("due campaign has no eligible recipients")
	case errors.As(err, &invalid):
		res.Result = ResultInvalid
		log.Warn().Err(err).Msg("due campaign has invalid content")
	default:
		res.Result = ResultFailed
		log.Error().Err(err).Msg("campaign dispatch failed")
	}
	return res
}

// Start registers the tick on a cron runtime: first run after InitialDelay,
// then every PollInterval. Calling Start twice is a no-op.
//
// Canceling ctx does not cancel a running tick; only Stop does. A dispatch
// that is cut short still finalizes, so shutdown has to drain it first.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return
	}

	cronLog := logging.CronLogger{Log: p.log}
	// Values such as the logger carry over, cancellation does not
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	p.cron.Schedule(newDelayedSchedule(p.cfg.PollInterval, p.cfg.InitialDelay, time.Now()), cron.FuncJob(p.run))
	p.cron.Start()

	p.log.Info().
		Dur("interval", p.cfg.PollInterval).
		Dur("initial_delay", p.cfg.InitialDelay).
		Msg("scheduler started")
}

func (p *Poller) run() {
	if _, err := p.Tick(p.ctx); err != nil {
		if errors.Is(err, ErrTickInProgress) {
			p.log.Debug().Msg("previous tick still running, skipping")
			return
		}
		p.log.Error().Err(err).Msg("tick failed")
	}
}

// Stop stops the schedule and waits for a running tick. When ctx expires
// first, the running dispatch is canceled and Stop waits for it to wind down.
func (p *Poller) Stop(ctx context.Context) {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}

	start := time.Now()
	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}
	cancel()
	p.log.Info().Dur("took", time.Since(start)).Msg("scheduler stopped")
}

// delayedSchedule fires once at first, then follows base
type delayedSchedule struct {
	base  cron.Schedule
	first time.Time
}

func newDelayedSchedule(every, initialDelay time.Duration, now time.Time) cron.Schedule {
	base := cron.Every(every)
	if initialDelay <= 0 {
		return base
	}
	return &delayedSchedule{base: base, first: now.Add(initialDelay)}
}

func (s *delayedSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}
