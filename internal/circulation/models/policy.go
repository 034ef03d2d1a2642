package models

import "time"

// Borrowing policy constants. Fines are integer currency units per day.
const (
	MaxBooksPerPatron = 5
	MaxBorrowDays     = 15
	MaxRenewals       = 2
	FinePerDay        = 50
	RenewGraceDays    = 3
)

// DateOnly drops the time-of-day component. All circulation arithmetic works
// in whole days so a loan issued at 23:59 and one issued at 00:01 agree on
// their due date span.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole days from a to b (negative if b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// DueDateFor computes the due date for an issue on the given day.
func DueDateFor(issueDate time.Time) time.Time {
	return DateOnly(issueDate).AddDate(0, 0, MaxBorrowDays)
}

// ExtendDueDate computes the renewed due date. The extension is anchored on
// the previous due date, not on today, so renewing early gives up no time.
func ExtendDueDate(dueDate time.Time) time.Time {
	return DateOnly(dueDate).AddDate(0, 0, MaxBorrowDays)
}

// DaysUntilDue returns how many days remain before the due date as of today.
// Negative values mean the loan is overdue.
func (l *Loan) DaysUntilDue(today time.Time) int {
	return DaysBetween(today, l.DueDate)
}

// CurrentFine derives the live fine as of today. It is zero through the due
// date and accrues linearly after; it never decreases as today advances.
func (l *Loan) CurrentFine(today time.Time) int64 {
	overdueDays := DaysBetween(l.DueDate, today)
	if overdueDays <= 0 {
		return 0
	}
	return int64(overdueDays) * FinePerDay
}

// UrgencyAt classifies the loan for display as of today.
func (l *Loan) UrgencyAt(today time.Time) Urgency {
	days := l.DaysUntilDue(today)
	switch {
	case days < 0:
		return UrgencyOverdue
	case days <= RenewGraceDays:
		return UrgencyDueSoon
	default:
		return UrgencyNormal
	}
}

// CanRenewAt reports renewal eligibility as of today: under the renewal cap
// and no more than the grace period past due.
func (l *Loan) CanRenewAt(today time.Time) bool {
	return l.RenewalCount < MaxRenewals && l.DaysUntilDue(today) >= -RenewGraceDays
}

// ViewAt builds the display view of an open loan as of today.
func (l *Loan) ViewAt(today time.Time) LoanView {
	return LoanView{
		Loan:         *l,
		DaysUntilDue: l.DaysUntilDue(today),
		Urgency:      l.UrgencyAt(today),
		CurrentFine:  l.CurrentFine(today),
		CanRenew:     l.CanRenewAt(today),
	}
}
