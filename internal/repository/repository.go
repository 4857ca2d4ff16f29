package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist
var ErrNotFound = errors.New("not found")

// CampaignRepository defines campaign data access operations.
// Status transitions are compare-and-set: they report false when the
// row was not in the expected prior state.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id int) (*models.Campaign, error)
	List(ctx context.Context, filters CampaignFilters) ([]*models.Campaign, int, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	Schedule(ctx context.Context, id int, at time.Time) (bool, error)
	TryStartSending(ctx context.Context, id int) (bool, error)
	CompleteDispatch(ctx context.Context, id int, sentAt time.Time, stats *models.CampaignStats) error
	Revert(ctx context.Context, id int, to models.CampaignStatus, retryAt *time.Time) error
}

// CampaignFilters defines filters for listing campaigns
type CampaignFilters struct {
	Page     int
	PageSize int
	Channel  *models.Channel
	Status   *models.CampaignStatus
}

// Limit returns the clamped page size
func (f CampaignFilters) Limit() int {
	limit := f.PageSize
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

// Offset returns the row offset for the requested page
func (f CampaignFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit()
	if offset < 0 {
		offset = 0
	}
	return offset
}

// RecipientRepository resolves the audience of a newsletter
type RecipientRepository interface {
	ListEligible(ctx context.Context, newsletterID int, channel models.Channel) ([]models.Recipient, error)
}

// StatsRepository reads campaign statistics rows
type StatsRepository interface {
	Latest(ctx context.Context, campaignID int) (*models.CampaignStats, error)
	ListByCampaign(ctx context.Context, campaignID int) ([]*models.CampaignStats, error)
}

// Store bundles the repositories behind one storage backend
type Store struct {
	Driver     string
	Campaigns  CampaignRepository
	Recipients RecipientRepository
	Stats      StatsRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks that the backend is reachable
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}
