package service

import (
	"errors"
	"fmt"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

// ErrAsyncDisabled is returned by Enqueue when no queue publisher is configured
var ErrAsyncDisabled = errors.New("async dispatch is not enabled")

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Resource, e.ID)
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// SchedulingConflictError is returned when a campaign is not in a state that allows the request
type SchedulingConflictError struct {
	CampaignID int
	Status     models.CampaignStatus
}

func (e *SchedulingConflictError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("campaign %d cannot be dispatched in its current state", e.CampaignID)
	}
	return fmt.Sprintf("campaign %d cannot be dispatched: status is %s", e.CampaignID, e.Status)
}

// EmptyAudienceError is returned when a campaign resolves to zero recipients
type EmptyAudienceError struct {
	CampaignID   int
	NewsletterID int
	Channel      models.Channel
}

func (e *EmptyAudienceError) Error() string {
	return fmt.Sprintf("campaign %d has no eligible %s recipients in newsletter %d", e.CampaignID, e.Channel, e.NewsletterID)
}

// DispatchFatalError aborts a whole dispatch. The campaign has been reverted
// to scheduled unless Reverted is false.
type DispatchFatalError struct {
	CampaignID int
	Stage      string
	Reverted   bool
	Err        error
}

func (e *DispatchFatalError) Error() string {
	return fmt.Sprintf("dispatch of campaign %d failed during %s: %v", e.CampaignID, e.Stage, e.Err)
}

func (e *DispatchFatalError) Unwrap() error {
	return e.Err
}
