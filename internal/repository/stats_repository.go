package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

const statsColumns = `id, campaign_id, channel, sent, bounced, delivered, failed, opens, clicks, created_at`

type statsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

// Latest returns the most recent stats row of a campaign
func (r *statsRepository) Latest(ctx context.Context, campaignID int) (*models.CampaignStats, error) {
	query := r.db.Rebind(`SELECT ` + statsColumns + ` FROM campaign_stats
		WHERE campaign_id = ? ORDER BY id DESC LIMIT 1`)

	stats := &models.CampaignStats{}
	err := r.db.GetContext(ctx, stats, query, campaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign stats: %w", err)
	}
	return stats, nil
}

// ListByCampaign returns every stats row of a campaign, oldest first
func (r *statsRepository) ListByCampaign(ctx context.Context, campaignID int) ([]*models.CampaignStats, error) {
	query := r.db.Rebind(`SELECT ` + statsColumns + ` FROM campaign_stats
		WHERE campaign_id = ? ORDER BY id ASC`)

	rows := []*models.CampaignStats{}
	if err := r.db.SelectContext(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list campaign stats: %w", err)
	}
	return rows, nil
}
