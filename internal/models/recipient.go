package models

import "strings"

// Recipient is a snapshot of one eligible subscriber taken when a dispatch starts
type Recipient struct {
	Address string `json:"address" db:"address"`
	Name    string `json:"name,omitempty" db:"name"`
}

// DisplayName returns the name to address the recipient by
func (r Recipient) DisplayName() string {
	return strings.TrimSpace(r.Name)
}

// Message is the rendered content handed to the dispatcher, identical for every recipient
type Message struct {
	Channel Channel `json:"channel"`
	Subject string  `json:"subject,omitempty"`
	HTML    string  `json:"html,omitempty"`
	Text    string  `json:"text,omitempty"`
}
