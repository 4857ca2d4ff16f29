package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxSMSLength is the longest SMS body a campaign may carry, in characters
const MaxSMSLength = 160

// CampaignStatus represents valid campaign statuses
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
)

// Valid reports whether s is a known status
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending, CampaignStatusSent:
		return true
	}
	return false
}

// Channel represents valid messaging channels
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Campaign represents an outbound message definition and its lifecycle
type Campaign struct {
	ID           int            `json:"id" db:"id"`
	NewsletterID int            `json:"newsletter_id" db:"newsletter_id"`
	Channel      Channel        `json:"channel" db:"channel"`
	Subject      string         `json:"subject,omitempty" db:"subject"`
	ContentHTML  string         `json:"content_html,omitempty" db:"content_html"`
	ContentText  string         `json:"content_text,omitempty" db:"content_text"`
	Message      string         `json:"message,omitempty" db:"message"`
	Status       CampaignStatus `json:"status" db:"status"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty" db:"scheduled_for"`
	SentAt       *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// CampaignWithStats represents a campaign with its latest statistics row
type CampaignWithStats struct {
	Campaign
	Stats CampaignStats `json:"stats"`
}

// Validate checks that the campaign carries the content its channel needs
func (c *Campaign) Validate() error {
	if !c.Channel.Valid() {
		return fmt.Errorf("invalid channel: must be 'email' or 'sms'")
	}
	if c.NewsletterID <= 0 {
		return fmt.Errorf("newsletter_id is required")
	}
	return ValidateContent(c.Channel, c.Subject, c.ContentHTML, c.ContentText, c.Message)
}

// ValidateContent checks per-channel content rules shared by campaigns and ad-hoc sends
func ValidateContent(channel Channel, subject, html, text, message string) error {
	switch channel {
	case ChannelEmail:
		if strings.TrimSpace(subject) == "" {
			return fmt.Errorf("subject is required")
		}
		if strings.TrimSpace(html) == "" && strings.TrimSpace(text) == "" {
			return fmt.Errorf("content_html or content_text is required")
		}
	case ChannelSMS:
		if strings.TrimSpace(message) == "" {
			return fmt.Errorf("message is required")
		}
		if n := utf8.RuneCountInString(message); n > MaxSMSLength {
			return fmt.Errorf("message must be %d characters or less, got %d", MaxSMSLength, n)
		}
	default:
		return fmt.Errorf("invalid channel: must be 'email' or 'sms'")
	}
	return nil
}

// IsScheduled checks if campaign is scheduled for the future relative to now
func (c *Campaign) IsScheduled(now time.Time) bool {
	return c.ScheduledFor != nil && c.ScheduledFor.After(now)
}

// IsDue reports whether a scheduled campaign's time has come
func (c *Campaign) IsDue(now time.Time) bool {
	return c.Status == CampaignStatusScheduled && c.ScheduledFor != nil && !c.ScheduledFor.After(now)
}

// CanSend checks if campaign may enter the sending state
func (c *Campaign) CanSend() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}
