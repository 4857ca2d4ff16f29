package service

import (
	"strings"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

// Compose validates a campaign and renders the message every recipient receives.
// Only the HTML part of an email carries link attribution.
func Compose(c *models.Campaign) (models.Message, error) {
	if err := c.Validate(); err != nil {
		return models.Message{}, &ValidationError{Message: err.Error()}
	}

	switch c.Channel {
	case models.ChannelSMS:
		return models.Message{Channel: models.ChannelSMS, Text: c.Message}, nil
	default:
		msg := models.Message{
			Channel: models.ChannelEmail,
			Subject: strings.TrimSpace(c.Subject),
			Text:    c.ContentText,
		}
		if c.ContentHTML != "" {
			msg.HTML = RewriteLinks(c.ContentHTML, c.ID)
		}
		return msg, nil
	}
}
