// Package store persists loans. Implementations must make Issue atomic
// against concurrent issues from the same patron: the loan-count and
// duplicate-item invariants are enforced here, under a lock or transaction,
// not by a separate check in the service.
package store

import (
	"context"
	"errors"

	"libripal/internal/circulation/models"
	id "libripal/pkg/domain"
)

// Policy violations surfaced by Issue. The service translates these into
// structured failure results rather than errors.
var (
	ErrLoanLimitReached = errors.New("patron has reached the loan limit")
	ErrDuplicateLoan    = errors.New("item is already issued to this patron")
)

// LoanStore is the circulation persistence contract.
type LoanStore interface {
	// Transact runs fn atomically. Renew and Return read the loan with a
	// row lock inside fn and write it back before commit.
	Transact(ctx context.Context, fn func(ctx context.Context) error) error

	// Issue inserts the loan if the patron is under the loan limit and does
	// not already hold the item. Returns ErrLoanLimitReached or
	// ErrDuplicateLoan on policy violation; fills in the loan ID on success.
	Issue(ctx context.Context, loan *models.Loan) error

	// GetOpenForUpdate fetches the patron's open loan, locked for the
	// duration of the surrounding Transact. Returns sentinel.ErrNotFound if
	// no open loan matches (including already-returned loans).
	GetOpenForUpdate(ctx context.Context, patronID id.PatronID, loanID id.LoanID) (*models.Loan, error)

	// Update writes back a mutated loan.
	Update(ctx context.Context, loan *models.Loan) error

	// ListOpen returns the patron's open loans, oldest first.
	ListOpen(ctx context.Context, patronID id.PatronID) ([]*models.Loan, error)

	// ListByStatuses returns the patron's loans in any of the given
	// statuses, oldest first. With no statuses it returns the full history.
	ListByStatuses(ctx context.Context, patronID id.PatronID, statuses ...models.Status) ([]*models.Loan, error)
}
