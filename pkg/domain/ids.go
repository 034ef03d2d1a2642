// Package domain holds typed identifiers shared across modules. Wrapping
// raw values in distinct types lets the compiler catch a loan ID being
// passed where a patron ID belongs.
package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "libripal/pkg/domain-errors"
)

// PatronID identifies a library patron. Patrons are created on first
// authentication, so the ID is minted here rather than by the identity
// provider.
type PatronID uuid.UUID

// LoanID identifies a circulation record. Loans use a database serial since
// they are append-only rows owned entirely by this service.
type LoanID int64

// NotificationID identifies an in-app notification row.
type NotificationID int64

// NewPatronID mints a fresh patron identifier.
func NewPatronID() PatronID {
	return PatronID(uuid.New())
}

// ParsePatronID validates and parses a patron ID from its string form.
// IDs must be valid, non-nil UUIDs.
func ParsePatronID(s string) (PatronID, error) {
	if s == "" {
		return PatronID{}, dErrors.New(dErrors.CodeInvalidInput, "patron id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return PatronID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "patron id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return PatronID{}, dErrors.New(dErrors.CodeInvalidInput, "patron id must not be the nil UUID")
	}
	return PatronID(parsed), nil
}

func (id PatronID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero value.
func (id PatronID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText renders the ID in canonical UUID form for JSON and logs.
func (id PatronID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the ID from canonical UUID form.
func (id *PatronID) UnmarshalText(text []byte) error {
	parsed, err := ParsePatronID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseLoanID validates and parses a loan ID from its string form, as it
// appears in URL paths.
func ParseLoanID(s string) (LoanID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "loan id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "loan id must be a positive integer")
	}
	return LoanID(n), nil
}

func (id LoanID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseNotificationID validates and parses a notification ID from its string
// form, as it appears in URL paths.
func ParseNotificationID(s string) (NotificationID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "notification id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "notification id must be a positive integer")
	}
	return NotificationID(n), nil
}

func (id NotificationID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
