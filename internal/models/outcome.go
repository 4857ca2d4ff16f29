package models

import "time"

// ErrorKind classifies a single recipient's delivery failure
type ErrorKind string

const (
	ErrorKindRejected       ErrorKind = "rejected"
	ErrorKindInvalidAddress ErrorKind = "invalid_address"
	ErrorKindRateLimited    ErrorKind = "rate_limited"
	ErrorKindUnavailable    ErrorKind = "unavailable"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindTransport      ErrorKind = "transport"
)

// RecipientFailure records one failed delivery without the raw address
type RecipientFailure struct {
	RecipientHash string    `json:"recipient_hash"`
	Kind          ErrorKind `json:"error_kind"`
	Detail        string    `json:"error_detail"`
}

// DispatchOutcome summarizes one dispatch invocation.
// Succeeded + len(Failures) == Attempted always holds.
type DispatchOutcome struct {
	Attempted int                `json:"attempted"`
	Succeeded int                `json:"succeeded"`
	Failures  []RecipientFailure `json:"failures"`
	Batches   int                `json:"batches"`
	Skipped   int                `json:"skipped"`
	Canceled  bool               `json:"canceled"`
}

// Failed returns the number of failed recipients
func (o DispatchOutcome) Failed() int {
	return len(o.Failures)
}

// Stats folds the outcome into the per-channel stats row shape
func (o DispatchOutcome) Stats(campaignID int, channel Channel) CampaignStats {
	stats := CampaignStats{
		CampaignID: campaignID,
		Channel:    channel,
		Sent:       o.Succeeded,
	}
	if channel == ChannelSMS {
		stats.Delivered = o.Succeeded
		stats.Failed = o.Failed()
	} else {
		stats.Bounced = o.Failed()
	}
	return stats
}

// DispatchEvent is published after a dispatch is finalized or reverted
type DispatchEvent struct {
	DispatchID string         `json:"dispatch_id"`
	CampaignID int            `json:"campaign_id"`
	Channel    Channel        `json:"channel"`
	Status     CampaignStatus `json:"status"`
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Error      string         `json:"error,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
