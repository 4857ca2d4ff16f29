package models

import "time"

// CampaignStats is the aggregate row written once when a dispatch completes.
// Opens and Clicks are filled by the tracking collaborator.
type CampaignStats struct {
	ID         int       `json:"id" db:"id"`
	CampaignID int       `json:"campaign_id" db:"campaign_id"`
	Channel    Channel   `json:"channel" db:"channel"`
	Sent       int       `json:"sent" db:"sent"`
	Bounced    int       `json:"bounced" db:"bounced"`
	Delivered  int       `json:"delivered" db:"delivered"`
	Failed     int       `json:"failed" db:"failed"`
	Opens      int       `json:"opens" db:"opens"`
	Clicks     int       `json:"clicks" db:"clicks"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
