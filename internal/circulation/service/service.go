// Package service implements the lending desk: issue, renew, return, and the
// fine ledger. Policy violations come back as failure results; only storage
// and infrastructure trouble surfaces as errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"libripal/internal/circulation/metrics"
	"libripal/internal/circulation/models"
	"libripal/internal/circulation/store"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/events"
	"libripal/pkg/platform/sentinel"
	"libripal/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, event events.Event) error
}

// Notifier delivers a message to the patron over their preferred channels.
// Delivery is best effort; circulation never fails because a channel did.
type Notifier interface {
	Notify(ctx context.Context, patronID id.PatronID, subject, message string) error
}

// FineSummary is the patron's outstanding fine position across open loans.
type FineSummary struct {
	TotalFine    int64             `json:"total_fine"`
	OverdueLoans []models.LoanView `json:"overdue_loans"`
}

// Service runs the circulation desk over a loan store.
type Service struct {
	store    store.LoanStore
	emitter  Emitter
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the circulation metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEmitter sets the domain event publisher.
func WithEmitter(e Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithNotifier sets the patron notification channel.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New builds the circulation service.
func New(loanStore store.LoanStore, opts ...Option) *Service {
	s := &Service{
		store:  loanStore,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue lends the item to the calling patron. The loan-count and
// duplicate-item checks happen inside the store's insert so two concurrent
// requests cannot both pass them.
func (s *Service) Issue(ctx context.Context, item models.ItemSnapshot) (models.Result, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return models.Result{}, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}
	if item.ItemID == "" || item.Title == "" {
		return models.Result{}, dErrors.New(dErrors.CodeInvalidInput, "item id and title are required")
	}

	today := models.DateOnly(requestcontext.Now(ctx))
	loan := &models.Loan{
		PatronID:  patronID,
		Item:      item,
		IssueDate: today,
		DueDate:   models.DueDateFor(today),
		Status:    models.StatusIssued,
	}

	err := s.store.Issue(ctx, loan)
	switch {
	case errors.Is(err, store.ErrLoanLimitReached):
		s.metrics.IncrementPolicyDenial("loan_limit")
		s.emit(ctx, events.EventLoanDenied, patronID, item.Title, "denied_limit_reached")
		return models.Failure(fmt.Sprintf("Loan limit reached: at most %d books at a time.", models.MaxBooksPerPatron)), nil
	case errors.Is(err, store.ErrDuplicateLoan):
		s.metrics.IncrementPolicyDenial("duplicate")
		s.emit(ctx, events.EventLoanDenied, patronID, item.Title, "denied_duplicate")
		return models.Failure("You already have this book on loan."), nil
	case err != nil:
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue loan")
	}

	s.metrics.IncrementLoansIssued()
	s.emit(ctx, events.EventLoanIssued, patronID, item.Title, "issued")
	s.notify(ctx, patronID, "Book issued",
		fmt.Sprintf("%q is due on %s.", item.Title, loan.DueDate.Format(dateLayout)))

	s.logger.InfoContext(ctx, "loan issued",
		"request_id", requestcontext.RequestID(ctx),
		"loan_id", loan.ID,
		"item_id", item.ItemID,
		"due_date", loan.DueDate.Format(dateLayout))

	view := loan.ViewAt(today)
	return models.Successf(
		fmt.Sprintf("%q issued. Due on %s.", item.Title, loan.DueDate.Format(dateLayout)),
		view,
	), nil
}

// Renew extends the loan by the full borrow period, anchored on the previous
// due date. The read-check-write runs in one transaction so two concurrent
// renewals cannot both pass the renewal-count check.
func (s *Service) Renew(ctx context.Context, loanID id.LoanID) (models.Result, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return models.Result{}, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	today := models.DateOnly(requestcontext.Now(ctx))
	var result models.Result

	err := s.store.Transact(ctx, func(ctx context.Context) error {
		loan, err := s.store.GetOpenForUpdate(ctx, patronID, loanID)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementPolicyDenial("not_found")
			s.emit(ctx, events.EventLoanDenied, patronID, loanID.String(), "denied_not_found")
			result = models.Failure("No open loan found.")
			return nil
		}
		if err != nil {
			return err
		}

		if loan.RenewalCount >= models.MaxRenewals {
			s.metrics.IncrementPolicyDenial("renewal_limit")
			s.emit(ctx, events.EventLoanDenied, patronID, loan.Item.Title, "denied_renewal_limit")
			result = models.Failure(fmt.Sprintf("Renewal limit reached: a loan can be renewed at most %d times.", models.MaxRenewals))
			return nil
		}
		if !loan.CanRenewAt(today) {
			s.metrics.IncrementPolicyDenial("too_overdue")
			s.emit(ctx, events.EventLoanDenied, patronID, loan.Item.Title, "denied_too_overdue")
			result = models.Failure(fmt.Sprintf("Loan is more than %d days overdue and can no longer be renewed. Please return the book.", models.RenewGraceDays))
			return nil
		}

		loan.DueDate = models.ExtendDueDate(loan.DueDate)
		loan.RenewalCount++
		if err := s.store.Update(ctx, loan); err != nil {
			return err
		}

		s.metrics.IncrementLoansRenewed()
		s.emit(ctx, events.EventLoanRenewed, patronID, loan.Item.Title, "renewed")
		s.notify(ctx, patronID, "Loan renewed",
			fmt.Sprintf("%q is now due on %s.", loan.Item.Title, loan.DueDate.Format(dateLayout)))

		s.logger.InfoContext(ctx, "loan renewed",
			"request_id", requestcontext.RequestID(ctx),
			"loan_id", loan.ID,
			"renewal_count", loan.RenewalCount,
			"due_date", loan.DueDate.Format(dateLayout))

		result = models.Successf(
			fmt.Sprintf("Loan renewed. New due date %s.", loan.DueDate.Format(dateLayout)),
			loan.ViewAt(today),
		)
		return nil
	})
	if err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to renew loan")
	}
	return result, nil
}

// Return closes the loan, freezing the fine accrued up to today. Returning a
// loan that is already returned reports failure, not success; returned is
// terminal.
func (s *Service) Return(ctx context.Context, loanID id.LoanID) (models.Result, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return models.Result{}, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	today := models.DateOnly(requestcontext.Now(ctx))
	var result models.Result

	err := s.store.Transact(ctx, func(ctx context.Context) error {
		loan, err := s.store.GetOpenForUpdate(ctx, patronID, loanID)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementPolicyDenial("not_found")
			result = models.Failure("No open loan found.")
			return nil
		}
		if err != nil {
			return err
		}
		if !loan.Status.CanTransitionTo(models.StatusReturned) {
			return dErrors.Newf(dErrors.CodeInternal, "illegal status transition from %q", loan.Status)
		}

		fine := loan.CurrentFine(today)
		returnDate := today
		loan.Status = models.StatusReturned
		loan.ReturnDate = &returnDate
		loan.FineAmount = fine
		if err := s.store.Update(ctx, loan); err != nil {
			return err
		}

		s.metrics.IncrementLoansReturned()
		s.metrics.AddFinesFrozen(fine)
		s.emit(ctx, events.EventLoanReturned, patronID, loan.Item.Title, "returned")

		s.logger.InfoContext(ctx, "loan returned",
			"request_id", requestcontext.RequestID(ctx),
			"loan_id", loan.ID,
			"fine_amount", fine)

		message := "Book returned on time."
		if fine > 0 {
			message = fmt.Sprintf("Book returned. Outstanding fine: %d.", fine)
			s.notify(ctx, patronID, "Fine due",
				fmt.Sprintf("%q was returned %d days late. Fine: %d.", loan.Item.Title, fine/models.FinePerDay, fine))
		} else {
			s.notify(ctx, patronID, "Book returned",
				fmt.Sprintf("%q was returned on time. Thank you.", loan.Item.Title))
		}
		result = models.Successf(message, returnedLoan{Loan: *loan, Fine: fine})
		return nil
	})
	if err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to return loan")
	}
	return result, nil
}

type returnedLoan struct {
	models.Loan
	Fine int64 `json:"fine"`
}

// ListOpenLoans returns the patron's open loans as display views derived
// as of today.
func (s *Service) ListOpenLoans(ctx context.Context) ([]models.LoanView, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	loans, err := s.store.ListOpen(ctx, patronID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list loans")
	}

	today := models.DateOnly(requestcontext.Now(ctx))
	views := make([]models.LoanView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, loan.ViewAt(today))
	}
	return views, nil
}

// ListHistory returns all of the patron's loans, open and closed, oldest
// first.
func (s *Service) ListHistory(ctx context.Context) ([]*models.Loan, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	loans, err := s.store.ListByStatuses(ctx, patronID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list loan history")
	}
	return loans, nil
}

// OutstandingFines sums the live fines across the patron's open loans. Fines
// already frozen at return time are settled offline and not included.
func (s *Service) OutstandingFines(ctx context.Context) (FineSummary, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return FineSummary{}, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	loans, err := s.store.ListOpen(ctx, patronID)
	if err != nil {
		return FineSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list loans")
	}

	today := models.DateOnly(requestcontext.Now(ctx))
	summary := FineSummary{OverdueLoans: []models.LoanView{}}
	for _, loan := range loans {
		fine := loan.CurrentFine(today)
		if fine == 0 {
			continue
		}
		summary.TotalFine += fine
		summary.OverdueLoans = append(summary.OverdueLoans, loan.ViewAt(today))
	}
	return summary, nil
}

// emit publishes a domain event, logging rather than failing on error.
func (s *Service) emit(ctx context.Context, eventType events.EventType, patronID id.PatronID, subject, detail string) {
	if s.emitter == nil {
		return
	}
	err := s.emitter.Emit(ctx, events.Event{
		Type:      eventType,
		PatronID:  patronID,
		Subject:   subject,
		Detail:    detail,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit event",
			"request_id", requestcontext.RequestID(ctx),
			"event_type", string(eventType),
			"error", err)
	}
}

// notify sends a best-effort message over the patron's channels.
func (s *Service) notify(ctx context.Context, patronID id.PatronID, subject, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, patronID, subject, message); err != nil {
		s.logger.WarnContext(ctx, "failed to notify patron",
			"request_id", requestcontext.RequestID(ctx),
			"subject", subject,
			"error", err)
	}
}
