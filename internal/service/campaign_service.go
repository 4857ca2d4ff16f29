package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/clock"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/logging"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/queue"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
)

const eventPublishTimeout = 5 * time.Second

// Resolver produces the recipients of a campaign
type Resolver interface {
	Resolve(ctx context.Context, c *models.Campaign) ([]models.Recipient, error)
}

// Publisher is the queue side of the service. *queue.Publisher satisfies it.
type Publisher interface {
	PublishSendRequest(ctx context.Context, req *queue.SendRequest) error
	PublishDispatchEvent(ctx context.Context, event *models.DispatchEvent) error
}

// PacingConfig holds the batch pacing for campaign and ad-hoc dispatches
type PacingConfig struct {
	Campaign DispatchOptions
	AdHoc    DispatchOptions
}

// CampaignService owns the campaign lifecycle: draft, scheduled, sending, sent.
// Entering sending is a compare-and-set and the only way into a dispatch.
type CampaignService struct {
	campaignRepo repository.CampaignRepository
	statsRepo    repository.StatsRepository
	resolver     Resolver
	dispatcher   *Dispatcher
	publisher    Publisher
	clock        clock.Clock
	pacing       PacingConfig
	log          zerolog.Logger
}

// NewCampaignService creates a new campaign service. publisher may be nil
// when async dispatch is disabled.
func NewCampaignService(
	campaignRepo repository.CampaignRepository,
	statsRepo repository.StatsRepository,
	resolver Resolver,
	dispatcher *Dispatcher,
	publisher Publisher,
	clk clock.Clock,
	pacing PacingConfig,
	log zerolog.Logger,
) *CampaignService {
	if clk == nil {
		clk = clock.System
	}
	return &CampaignService{
		campaignRepo: campaignRepo,
		statsRepo:    statsRepo,
		resolver:     resolver,
		dispatcher:   dispatcher,
		publisher:    publisher,
		clock:        clk,
		pacing:       pacing,
		log:          logging.Component(log, "campaigns"),
	}
}

// CreateCampaign creates a new campaign, scheduled when scheduled_for is in the future
func (s *CampaignService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error) {
	campaign := &models.Campaign{
		NewsletterID: req.NewsletterID,
		Channel:      req.Channel,
		Subject:      strings.TrimSpace(req.Subject),
		ContentHTML:  req.ContentHTML,
		ContentText:  req.ContentText,
		Message:      req.Message,
		Status:       models.CampaignStatusDraft,
		ScheduledFor: req.ScheduledFor,
	}
	if err := campaign.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	if campaign.IsScheduled(s.clock.Now()) {
		campaign.Status = models.CampaignStatusScheduled
	}

	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.log.Info().
		Int("campaign_id", campaign.ID).
		Str("status", string(campaign.Status)).
		Str("channel", string(campaign.Channel)).
		Msg("campaign created")
	return campaign, nil
}

// GetCampaign retrieves a campaign by ID
func (s *CampaignService) GetCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "campaign", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// GetCampaignStats returns the latest stats row, or an all-zero row before the first dispatch
func (s *CampaignService) GetCampaignStats(ctx context.Context, id int) (*models.CampaignStats, error) {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.latestStats(ctx, campaign)
}

// GetCampaignWithStats retrieves a campaign with its latest statistics
func (s *CampaignService) GetCampaignWithStats(ctx context.Context, id int) (*models.CampaignWithStats, error) {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.latestStats(ctx, campaign)
	if err != nil {
		return nil, err
	}
	return &models.CampaignWithStats{Campaign: *campaign, Stats: *stats}, nil
}

func (s *CampaignService) latestStats(ctx context.Context, c *models.Campaign) (*models.CampaignStats, error) {
	stats, err := s.statsRepo.Latest(ctx, c.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.CampaignStats{CampaignID: c.ID, Channel: c.Channel}, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ListCampaigns lists campaigns with filters
func (s *CampaignService) ListCampaigns(ctx context.Context, filters repository.CampaignFilters) ([]*models.Campaign, *PaginationInfo, error) {
	campaigns, total, err := s.campaignRepo.List(ctx, filters)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	pageSize := filters.Limit()
	page := filters.Page
	if page < 1 {
		page = 1
	}

	pagination := &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	return campaigns, pagination, nil
}

// ScheduleCampaign sets a future send time on a draft or scheduled campaign
func (s *CampaignService) ScheduleCampaign(ctx context.Context, id int, at time.Time) (*models.Campaign, error) {
	if !at.After(s.clock.Now()) {
		return nil, &ValidationError{Message: "scheduled_for must be in the future"}
	}

	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.campaignRepo.Schedule(ctx, id, at)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule campaign: %w", err)
	}
	if !ok {
		return nil, s.conflict(ctx, campaign)
	}

	s.log.Info().Int("campaign_id", id).Time("scheduled_for", at).Msg("campaign scheduled")
	return s.GetCampaign(ctx, id)
}

// SendNow dispatches a draft or scheduled campaign immediately
func (s *CampaignService) SendNow(ctx context.Context, id int) (*DispatchResult, error) {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.DispatchCampaign(ctx, campaign)
}

// Enqueue publishes an asynchronous send-now request for the worker
func (s *CampaignService) Enqueue(ctx context.Context, id int) (*queue.SendRequest, error) {
	if s.publisher == nil {
		return nil, ErrAsyncDisabled
	}
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.CanSend() {
		return nil, &SchedulingConflictError{CampaignID: id, Status: campaign.Status}
	}

	req := &queue.SendRequest{
		RequestID:   uuid.NewString(),
		CampaignID:  id,
		RequestedAt: s.clock.Now(),
	}
	if err := s.publisher.PublishSendRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to enqueue campaign: %w", err)
	}

	s.log.Info().Int("campaign_id", id).Str("request_id", req.RequestID).Msg("send request queued")
	return req, nil
}

// DispatchCampaign runs one dispatch of c. It claims the campaign with the
// sending transition, sends, then finalizes to sent or reverts to scheduled.
func (s *CampaignService) DispatchCampaign(ctx context.Context, c *models.Campaign) (*DispatchResult, error) {
	msg, err := Compose(c)
	if err != nil {
		return nil, err
	}

	// Claim the campaign; a lost race means someone else is sending it
	claimed, err := s.campaignRepo.TryStartSending(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to start dispatch: %w", err)
	}
	if !claimed {
		return nil, s.conflict(ctx, c)
	}

	prior := c.Status
	dispatchID := uuid.NewString()
	log := s.log.With().
		Str("dispatch_id", dispatchID).
		Int("campaign_id", c.ID).
		Str("channel", string(c.Channel)).
		Logger()
	log.Info().Str("from", string(prior)).Msg("dispatch started")

	// state writes after the claim must land even if ctx is canceled
	persistCtx := context.WithoutCancel(ctx)

	// Snapshot the audience
	recipients, err := s.resolver.Resolve(ctx, c)
	if err != nil {
		return nil, s.abort(persistCtx, log, c, dispatchID, "resolve", err)
	}

	if len(recipients) == 0 {
		if err := s.campaignRepo.Revert(persistCtx, c.ID, prior, nil); err != nil {
			return nil, s.abort(persistCtx, log, c, dispatchID, "restore", err)
		}
		log.Warn().Int("newsletter_id", c.NewsletterID).Msg("no eligible recipients")
		return nil, &EmptyAudienceError{CampaignID: c.ID, NewsletterID: c.NewsletterID, Channel: c.Channel}
	}

	outcome := s.dispatcher.Dispatch(ctx, recipients, msg, s.pacing.Campaign)

	// Finalize status and stats together
	sentAt := s.clock.Now()
	stats := outcome.Stats(c.ID, c.Channel)
	if err := s.campaignRepo.CompleteDispatch(persistCtx, c.ID, sentAt, &stats); err != nil {
		return nil, s.abort(persistCtx, log, c, dispatchID, "finalize", err)
	}

	log.Info().
		Int("attempted", outcome.Attempted).
		Int("succeeded", outcome.Succeeded).
		Int("failed", outcome.Failed()).
		Int("batches", outcome.Batches).
		Bool("canceled", outcome.Canceled).
		Msg("dispatch complete")

	s.publishEvent(persistCtx, log, &models.DispatchEvent{
		DispatchID: dispatchID,
		CampaignID: c.ID,
		Channel:    c.Channel,
		Status:     models.CampaignStatusSent,
		Attempted:  outcome.Attempted,
		Succeeded:  outcome.Succeeded,
		Failed:     outcome.Failed(),
		OccurredAt: sentAt,
	})

	return &DispatchResult{
		DispatchID: dispatchID,
		CampaignID: c.ID,
		Channel:    c.Channel,
		Status:     models.CampaignStatusSent,
		Sent:       outcome.Succeeded,
		Failed:     outcome.Failed(),
		Outcome:    outcome,
		Stats:      stats,
		SentAt:     sentAt,
	}, nil
}

// abort reverts a claimed campaign to scheduled so a later poll retries it
func (s *CampaignService) abort(ctx context.Context, log zerolog.Logger, c *models.Campaign, dispatchID, stage string, cause error) error {
	retryAt := s.clock.Now()
	fatal := &DispatchFatalError{CampaignID: c.ID, Stage: stage, Err: cause}

	if err := s.campaignRepo.Revert(ctx, c.ID, models.CampaignStatusScheduled, &retryAt); err != nil {
		fatal.Err = errors.Join(cause, fmt.Errorf("revert failed: %w", err))
		log.Error().Err(fatal.Err).Str("stage", stage).Msg("dispatch failed and campaign could not be reverted")
	} else {
		fatal.Reverted = true
		log.Error().Err(cause).Str("stage", stage).Msg("dispatch failed, campaign reverted to scheduled")
	}

	s.publishEvent(ctx, log, &models.DispatchEvent{
		DispatchID: dispatchID,
		CampaignID: c.ID,
		Channel:    c.Channel,
		Status:     models.CampaignStatusScheduled,
		Error:      fatal.Error(),
		OccurredAt: retryAt,
	})
	return fatal
}

func (s *CampaignService) conflict(ctx context.Context, c *models.Campaign) error {
	status := c.Status
	if current, err := s.campaignRepo.GetByID(ctx, c.ID); err == nil {
		status = current.Status
	}
	return &SchedulingConflictError{CampaignID: c.ID, Status: status}
}

func (s *CampaignService) publishEvent(ctx context.Context, log zerolog.Logger, event *models.DispatchEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
	defer cancel()
	if err := s.publisher.PublishDispatchEvent(ctx, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish dispatch event")
	}
}

// PreviewCampaign renders the message a dispatch would send right now and
// counts its current audience. Nothing is claimed or sent.
func (s *CampaignService) PreviewCampaign(ctx context.Context, id int) (*CampaignPreview, error) {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	msg, err := Compose(campaign)
	if err != nil {
		return nil, err
	}
	recipients, err := s.resolver.Resolve(ctx, campaign)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}
	return &CampaignPreview{
		CampaignID:   campaign.ID,
		Status:       campaign.Status,
		Message:      msg,
		AudienceSize: len(recipients),
	}, nil
}

// SendAdHoc sends one message to an explicit recipient list with ad-hoc pacing.
// No campaign record is involved.
func (s *CampaignService) SendAdHoc(ctx context.Context, req *AdHocRequest) (*models.DispatchOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	msg := models.Message{Channel: req.Channel, Subject: strings.TrimSpace(req.Subject), HTML: req.ContentHTML, Text: req.ContentText}
	if req.Channel == models.ChannelSMS {
		msg = models.Message{Channel: models.ChannelSMS, Text: req.Message}
	}

	outcome := s.dispatcher.Dispatch(ctx, req.Recipients, msg, s.pacing.AdHoc)
	s.log.Info().
		Str("channel", string(req.Channel)).
		Int("attempted", outcome.Attempted).
		Int("failed", outcome.Failed()).
		Msg("ad-hoc batch sent")
	return &outcome, nil
}

// Request/Response types

// CreateCampaignRequest represents a request to create a campaign
type CreateCampaignRequest struct {
	NewsletterID int            `json:"newsletter_id"`
	Channel      models.Channel `json:"channel"`
	Subject      string         `json:"subject"`
	ContentHTML  string         `json:"content_html"`
	ContentText  string         `json:"content_text"`
	Message      string         `json:"message"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
}

// ScheduleCampaignRequest represents a request to schedule a campaign
type ScheduleCampaignRequest struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// AdHocRequest represents a one-off batch send
type AdHocRequest struct {
	Channel     models.Channel     `json:"channel"`
	Subject     string             `json:"subject"`
	ContentHTML string             `json:"content_html"`
	ContentText string             `json:"content_text"`
	Message     string             `json:"message"`
	Recipients  []models.Recipient `json:"recipients"`
}

// Validate validates the ad-hoc request
func (r *AdHocRequest) Validate() error {
	if err := models.ValidateContent(r.Channel, r.Subject, r.ContentHTML, r.ContentText, r.Message); err != nil {
		return err
	}
	if len(r.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for i, rcpt := range r.Recipients {
		if strings.TrimSpace(rcpt.Address) == "" {
			return fmt.Errorf("recipient %d has no address", i)
		}
	}
	return nil
}

// DispatchResult is the summary returned by a campaign dispatch
type DispatchResult struct {
	DispatchID string                 `json:"dispatch_id"`
	CampaignID int                    `json:"campaign_id"`
	Channel    models.Channel         `json:"channel"`
	Status     models.CampaignStatus  `json:"status"`
	Sent       int                    `json:"sent"`
	Failed     int                    `json:"failed"`
	Outcome    models.DispatchOutcome `json:"outcome"`
	Stats      models.CampaignStats   `json:"stats"`
	SentAt     time.Time              `json:"sent_at"`
}

// CampaignPreview is the rendered message and audience size of a campaign
type CampaignPreview struct {
	CampaignID   int                   `json:"campaign_id"`
	Status       models.CampaignStatus `json:"status"`
	Message      models.Message        `json:"message"`
	AudienceSize int                   `json:"audience_size"`
}

// PaginationInfo represents pagination metadata
type PaginationInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}
