package service

import (
	"context"
	"time"

	circmodels "libripal/internal/circulation/models"
	notifmodels "libripal/internal/notification/models"
	"libripal/internal/patron/models"
	dErrors "libripal/pkg/domain-errors"
)

// LoanLister is the circulation surface the export needs.
type LoanLister interface {
	ListHistory(ctx context.Context) ([]*circmodels.Loan, error)
}

// NotificationLister is the notification surface the export needs.
type NotificationLister interface {
	List(ctx context.Context) ([]*notifmodels.Notification, error)
}

// WithLoanLister wires the export to the loan ledger.
func WithLoanLister(l LoanLister) Option {
	return func(s *Service) { s.loans = l }
}

// WithNotificationLister wires the export to the notification history.
func WithNotificationLister(l NotificationLister) Option {
	return func(s *Service) { s.notifications = l }
}

// Export is everything the service holds about one patron.
type Export struct {
	ExportedAt    time.Time                   `json:"exported_at"`
	Patron        *models.Patron              `json:"patron"`
	Loans         []*circmodels.Loan          `json:"loans"`
	Notifications []*notifmodels.Notification `json:"notifications"`
}

// ExportData gathers the calling patron's account, full loan history, and
// notification history into one document.
func (s *Service) ExportData(ctx context.Context) (*Export, error) {
	patron, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	export := &Export{
		ExportedAt:    time.Now().UTC(),
		Patron:        patron,
		Loans:         []*circmodels.Loan{},
		Notifications: []*notifmodels.Notification{},
	}

	if s.loans != nil {
		loans, err := s.loans.ListHistory(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export loans")
		}
		export.Loans = loans
	}
	if s.notifications != nil {
		notifications, err := s.notifications.List(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export notifications")
		}
		export.Notifications = notifications
	}
	return export, nil
}
