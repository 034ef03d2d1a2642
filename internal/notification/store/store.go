// Package store persists notifications and telegram link codes.
package store

import (
	"context"
	"time"

	"libripal/internal/notification/models"
	id "libripal/pkg/domain"
)

// NotificationStore is the notification persistence contract.
type NotificationStore interface {
	// Create inserts a notification and fills in its ID and CreatedAt.
	Create(ctx context.Context, notification *models.Notification) error

	// ListByPatron returns the patron's notifications, newest first.
	ListByPatron(ctx context.Context, patronID id.PatronID) ([]*models.Notification, error)

	// MarkRead marks the patron's notification as read. Returns
	// sentinel.ErrNotFound if the notification does not belong to the
	// patron or does not exist.
	MarkRead(ctx context.Context, patronID id.PatronID, notificationID id.NotificationID) error
}

// LinkCode is a pending telegram link: the bcrypt hash of a one-shot code
// bound to a patron, expiring shortly after issue.
type LinkCode struct {
	PatronID  id.PatronID
	CodeHash  []byte
	ExpiresAt time.Time
	Used      bool
}

// LinkCodeStore is the telegram link-code persistence contract.
type LinkCodeStore interface {
	// SaveLinkCode stores a pending link, replacing any earlier pending
	// code for the same patron.
	SaveLinkCode(ctx context.Context, code *LinkCode) error

	// ListPendingLinkCodes returns unexpired, unused codes. Redemption
	// compares the presented code against each hash; codes are short-lived
	// and few, so the scan stays small.
	ListPendingLinkCodes(ctx context.Context, now time.Time) ([]*LinkCode, error)

	// MarkLinkCodeUsed burns a redeemed code. Returns
	// sentinel.ErrAlreadyUsed if it was already burned.
	MarkLinkCodeUsed(ctx context.Context, patronID id.PatronID) error
}
