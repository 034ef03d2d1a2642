// Package models defines the circulation ledger's domain types. A Loan is an
// append-only record per patron: created at issue, mutated by renew and
// return, never deleted.
package models

import (
	"time"

	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
)

// Status is the loan state. The only legal transition is issued -> returned;
// renewals keep the loan in issued. Overdue-ness is derived at read time,
// never stored as a state.
type Status string

const (
	StatusIssued   Status = "issued"
	StatusReturned Status = "returned"
)

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusIssued, StatusReturned:
		return Status(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInternal, "unknown loan status %q", s)
	}
}

// CanTransitionTo reports whether moving to next is a legal transition.
// returned is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusIssued && next == StatusReturned
}

// ItemSnapshot denormalizes the catalog item at issue time. The catalog is
// external and not locally stored, so the loan carries its own copy.
type ItemSnapshot struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Loan is one circulation record. FineAmount stays zero while the loan is
// open; the live fine is derived from DueDate on every read and only frozen
// into FineAmount at return.
type Loan struct {
	ID           id.LoanID    `json:"id"`
	PatronID     id.PatronID  `json:"patron_id"`
	Item         ItemSnapshot `json:"item"`
	IssueDate    time.Time    `json:"issue_date"`
	DueDate      time.Time    `json:"due_date"`
	RenewalCount int          `json:"renewal_count"`
	Status       Status       `json:"status"`
	FineAmount   int64        `json:"fine_amount"`
	ReturnDate   *time.Time   `json:"return_date,omitempty"`
}

// Urgency classifies an open loan for display.
type Urgency string

const (
	UrgencyOverdue Urgency = "overdue"
	UrgencyDueSoon Urgency = "due_soon"
	UrgencyNormal  Urgency = "normal"
)

// LoanView is a Loan plus the values derived from "today" for display.
type LoanView struct {
	Loan
	DaysUntilDue int     `json:"days_until_due"`
	Urgency      Urgency `json:"urgency"`
	CurrentFine  int64   `json:"current_fine"`
	CanRenew     bool    `json:"can_renew"`
}

// Result is the outcome of a circulation operation. Policy violations are
// results with Success=false, not errors; callers branch on the flag.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Failure builds a policy-violation result.
func Failure(message string) Result {
	return Result{Success: false, Message: message}
}

// Successf builds a success result carrying structured data.
func Successf(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}
