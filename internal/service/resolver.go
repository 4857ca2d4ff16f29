package service

import (
	"context"
	"fmt"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
)

// RecipientResolver produces the audience snapshot of a campaign
type RecipientResolver struct {
	repo repository.RecipientRepository
}

// NewRecipientResolver creates a new recipient resolver
func NewRecipientResolver(repo repository.RecipientRepository) *RecipientResolver {
	return &RecipientResolver{repo: repo}
}

// Resolve returns the eligible recipients of the campaign's newsletter for its channel.
// The result is a private copy; an empty audience is not an error.
func (r *RecipientResolver) Resolve(ctx context.Context, c *models.Campaign) ([]models.Recipient, error) {
	if c.NewsletterID <= 0 {
		return nil, fmt.Errorf("campaign %d has no newsletter", c.ID)
	}
	found, err := r.repo.ListEligible(ctx, c.NewsletterID, c.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	snapshot := make([]models.Recipient, len(found))
	copy(snapshot, found)
	return snapshot, nil
}
