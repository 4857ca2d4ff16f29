package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

const campaignColumns = `id, newsletter_id, channel, subject, content_html, content_text, message,
	status, scheduled_for, sent_at, created_at, updated_at`

type campaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sqlx.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// Create creates a new campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO campaigns (newsletter_id, channel, subject, content_html, content_text, message,
			status, scheduled_for, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowxContext(
		ctx,
		query,
		campaign.NewsletterID,
		campaign.Channel,
		campaign.Subject,
		campaign.ContentHTML,
		campaign.ContentText,
		campaign.Message,
		campaign.Status,
		utcPtr(campaign.ScheduledFor),
		now,
		now,
	).Scan(&campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id int) (*models.Campaign, error) {
	query := r.db.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`)

	campaign := &models.Campaign{}
	err := r.db.GetContext(ctx, campaign, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

// List retrieves campaigns with filters and pagination, newest first
func (r *campaignRepository) List(ctx context.Context, filters CampaignFilters) ([]*models.Campaign, int, error) {
	where := strings.Builder{}
	where.WriteString(" WHERE 1=1")
	args := []interface{}{}

	if filters.Channel != nil {
		where.WriteString(" AND channel = ?")
		args = append(args, *filters.Channel)
	}
	if filters.Status != nil {
		where.WriteString(" AND status = ?")
		args = append(args, *filters.Status)
	}

	// Get total count
	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM campaigns" + where.String())
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	// Get paginated results
	listQuery := r.db.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns` + where.String() +
		` ORDER BY id DESC LIMIT ? OFFSET ?`)
	args = append(args, filters.Limit(), filters.Offset())

	campaigns := []*models.Campaign{}
	if err := r.db.SelectContext(ctx, &campaigns, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return campaigns, total, nil
}

// ListDueScheduled returns scheduled campaigns whose time has come, oldest first
func (r *campaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	query := r.db.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?
		ORDER BY scheduled_for ASC, id ASC`)

	campaigns := []*models.Campaign{}
	if err := r.db.SelectContext(ctx, &campaigns, query, models.CampaignStatusScheduled, now.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	return campaigns, nil
}

// Schedule moves a draft (or reschedules a scheduled) campaign to the given time
func (r *campaignRepository) Schedule(ctx context.Context, id int, at time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE campaigns
		SET status = ?, scheduled_for = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?)
	`)
	return r.execCAS(ctx, "schedule campaign", query,
		models.CampaignStatusScheduled, at.UTC(), id,
		models.CampaignStatusDraft, models.CampaignStatusScheduled,
	)
}

// TryStartSending atomically claims a draft or scheduled campaign for dispatch
func (r *campaignRepository) TryStartSending(ctx context.Context, id int) (bool, error) {
	query := r.db.Rebind(`
		UPDATE campaigns
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?)
	`)
	return r.execCAS(ctx, "start sending", query,
		models.CampaignStatusSending, id,
		models.CampaignStatusDraft, models.CampaignStatusScheduled,
	)
}

// CompleteDispatch marks a sending campaign sent and records its stats row in one transaction
func (r *campaignRepository) CompleteDispatch(ctx context.Context, id int, sentAt time.Time, stats *models.CampaignStats) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Only a sending campaign can be finalized
	result, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE campaigns
		SET status = ?, sent_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`), models.CampaignStatusSent, sentAt.UTC(), id, models.CampaignStatusSending)
	if err != nil {
		return fmt.Errorf("failed to mark campaign sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("campaign %d is not sending", id)
	}

	// Insert the aggregate stats row
	stats.CampaignID = id
	stats.CreatedAt = sentAt.UTC()
	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO campaign_stats (campaign_id, channel, sent, bounced, delivered, failed, opens, clicks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`),
		stats.CampaignID,
		stats.Channel,
		stats.Sent,
		stats.Bounced,
		stats.Delivered,
		stats.Failed,
		stats.Opens,
		stats.Clicks,
		stats.CreatedAt,
	).Scan(&stats.ID)
	if err != nil {
		return fmt.Errorf("failed to insert campaign stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Revert moves a sending campaign back to a retryable status. A campaign
// without a schedule gets retryAt so the poller picks it up again.
func (r *campaignRepository) Revert(ctx context.Context, id int, to models.CampaignStatus, retryAt *time.Time) error {
	query := r.db.Rebind(`
		UPDATE campaigns
		SET status = ?, scheduled_for = COALESCE(scheduled_for, ?), updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`)
	ok, err := r.execCAS(ctx, "revert campaign", query, to, utcPtr(retryAt), id, models.CampaignStatusSending)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("campaign %d is not sending", id)
	}
	return nil
}

func (r *campaignRepository) execCAS(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
