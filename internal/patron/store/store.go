// Package store persists patron accounts.
package store

import (
	"context"

	"libripal/internal/patron/models"
	id "libripal/pkg/domain"
)

// PatronStore is the patron persistence contract. Lookups by email are
// case-insensitive; emails are stored lowercased.
type PatronStore interface {
	// Create inserts a new patron. Returns sentinel.ErrConflict if the
	// email is already registered.
	Create(ctx context.Context, patron *models.Patron) error

	// GetByID fetches a patron, active or not. Returns sentinel.ErrNotFound
	// if no row matches.
	GetByID(ctx context.Context, patronID id.PatronID) (*models.Patron, error)

	// GetByEmail fetches a patron by lowercased email. Returns
	// sentinel.ErrNotFound if no row matches.
	GetByEmail(ctx context.Context, email string) (*models.Patron, error)

	// GetByTelegramChatID fetches the patron bound to a Telegram chat.
	// Returns sentinel.ErrNotFound if no patron has linked it.
	GetByTelegramChatID(ctx context.Context, chatID int64) (*models.Patron, error)

	// Update writes back a mutated patron and bumps UpdatedAt. Returns
	// sentinel.ErrNotFound if the row is gone.
	Update(ctx context.Context, patron *models.Patron) error

	// ListActive returns every active patron, used by the reminder sweep.
	ListActive(ctx context.Context) ([]*models.Patron, error)
}
