package queue

import (
	"errors"
	"time"
)

// SendRequest asks the worker to dispatch a campaign now
type SendRequest struct {
	RequestID   string    `json:"request_id"`
	CampaignID  int       `json:"campaign_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that must not be redelivered
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
