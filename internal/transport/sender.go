package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

// EmailSender delivers one email
type EmailSender interface {
	SendEmail(ctx context.Context, to, name, subject, html, text string) error
}

// SMSSender delivers one text message
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// Sender delivers a rendered message to a single recipient
type Sender interface {
	Deliver(ctx context.Context, r models.Recipient, msg models.Message) error
}

// SendError is a classified delivery failure reported by a transport
type SendError struct {
	Kind models.ErrorKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Classify maps a delivery error to its kind. Unclassified errors are transport failures.
func Classify(err error) models.ErrorKind {
	var se *SendError
	switch {
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindTimeout
	default:
		return models.ErrorKindTransport
	}
}

// Router picks the channel-specific sender for a message
type Router struct {
	Email EmailSender
	SMS   SMSSender
}

// Deliver sends msg to r over the message's channel
func (rt *Router) Deliver(ctx context.Context, r models.Recipient, msg models.Message) error {
	switch msg.Channel {
	case models.ChannelEmail:
		if rt.Email == nil {
			return &SendError{Kind: models.ErrorKindUnavailable, Err: errors.New("no email transport configured")}
		}
		return rt.Email.SendEmail(ctx, r.Address, r.DisplayName(), msg.Subject, msg.HTML, msg.Text)
	case models.ChannelSMS:
		if rt.SMS == nil {
			return &SendError{Kind: models.ErrorKindUnavailable, Err: errors.New("no sms transport configured")}
		}
		return rt.SMS.SendSMS(ctx, r.Address, msg.Text)
	default:
		return &SendError{Kind: models.ErrorKindRejected, Err: fmt.Errorf("unsupported channel %q", msg.Channel)}
	}
}
