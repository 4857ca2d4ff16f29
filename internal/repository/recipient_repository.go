package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

type recipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *sqlx.DB) RecipientRepository {
	return &recipientRepository{db: db}
}

// addressColumn maps a channel to the subscriber column it delivers to
func addressColumn(channel models.Channel) (string, error) {
	switch channel {
	case models.ChannelEmail:
		return "s.email", nil
	case models.ChannelSMS:
		return "s.phone_number", nil
	default:
		return "", fmt.Errorf("unsupported channel: %s", channel)
	}
}

// ListEligible returns confirmed, subscribed members of a newsletter that
// have an address for the channel, in stable subscriber order.
func (r *recipientRepository) ListEligible(ctx context.Context, newsletterID int, channel models.Channel) ([]models.Recipient, error) {
	column, err := addressColumn(channel)
	if err != nil {
		return nil, err
	}

	// column comes from the fixed switch above, never from input
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %[1]s AS address, s.name AS name
		FROM subscribers s
		JOIN subscriptions sub ON sub.subscriber_id = s.id
		WHERE sub.newsletter_id = ?
			AND sub.subscribed = TRUE
			AND s.confirmed = TRUE
			AND %[1]s IS NOT NULL
			AND TRIM(%[1]s) <> ''
		ORDER BY s.id ASC
	`, column))

	recipients := []models.Recipient{}
	if err := r.db.SelectContext(ctx, &recipients, query, newsletterID); err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}
