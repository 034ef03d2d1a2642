// Package models defines in-app notifications. Every message sent over an
// external channel also lands here, so the web UI shows history even when
// email or Telegram delivery failed.
package models

import (
	"time"

	id "libripal/pkg/domain"
)

// Notification is one message to a patron.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	PatronID  id.PatronID       `json:"patron_id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}
