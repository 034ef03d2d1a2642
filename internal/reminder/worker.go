// Package reminder sweeps open loans on a schedule and sends due-date and
// overdue reminders through the notification pipeline. The sweep is
// best-effort per patron: one patron's trouble never blocks the rest.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	circmodels "libripal/internal/circulation/models"
	patronmodels "libripal/internal/patron/models"
	"libripal/internal/reminder/metrics"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/events"
)

// DefaultInterval is how often the background sweep runs. Reminder days are
// whole calendar days, so anything more frequent only resends.
const DefaultInterval = 24 * time.Hour

// PatronDirectory lists the patrons the sweep considers.
type PatronDirectory interface {
	ListActive(ctx context.Context) ([]*patronmodels.Patron, error)
}

// LoanSource reads a patron's open loans.
type LoanSource interface {
	ListOpen(ctx context.Context, patronID id.PatronID) ([]*circmodels.Loan, error)
}

// Notifier stores and dispatches a notification to one patron.
type Notifier interface {
	Notify(ctx context.Context, patronID id.PatronID, title, message string) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, event events.Event) error
}

// Worker runs the reminder sweep.
type Worker struct {
	patrons  PatronDirectory
	loans    LoanSource
	notifier Notifier
	emitter  Emitter
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the worker.
type Option func(*Worker)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithMetrics sets the reminder metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithEmitter sets the domain event publisher.
func WithEmitter(e Emitter) Option {
	return func(w *Worker) { w.emitter = e }
}

// WithInterval overrides the sweep interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) { w.interval = interval }
}

// New builds a reminder worker.
func New(patrons PatronDirectory, loans LoanSource, notifier Notifier, opts ...Option) *Worker {
	w := &Worker{
		patrons:  patrons,
		loans:    loans,
		notifier: notifier,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs periodic sweeps until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RunOnceAt(ctx, time.Now()); err != nil {
				w.logger.ErrorContext(ctx, "reminder sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnceAt sweeps every active patron's open loans as of the given time.
// Exported for testability; the background loop passes wall-clock time.
func (w *Worker) RunOnceAt(ctx context.Context, now time.Time) error {
	today := circmodels.DateOnly(now)

	patrons, err := w.patrons.ListActive(ctx)
	if err != nil {
		w.metrics.IncrementSweepErrors()
		return fmt.Errorf("list active patrons: %w", err)
	}

	failed := 0
	for _, patron := range patrons {
		if err := w.sweepPatron(ctx, patron, today); err != nil {
			failed++
			w.logger.WarnContext(ctx, "patron reminder sweep failed",
				"patron_id", patron.ID.String(),
				"error", err)
		}
	}

	w.metrics.IncrementSweeps()
	if failed > 0 {
		w.metrics.IncrementSweepErrors()
	}
	w.logger.InfoContext(ctx, "reminder sweep completed",
		"patrons", len(patrons),
		"failed", failed)
	return nil
}

func (w *Worker) sweepPatron(ctx context.Context, patron *patronmodels.Patron, today time.Time) error {
	if !patron.Preferences.EmailReminders && !patron.Preferences.TelegramReminders {
		return nil
	}

	loans, err := w.loans.ListOpen(ctx, patron.ID)
	if err != nil {
		return fmt.Errorf("list open loans: %w", err)
	}

	sent := 0
	for _, loan := range loans {
		view := loan.ViewAt(today)
		if view.DaysUntilDue >= 0 && !slices.Contains(patron.Preferences.ReminderDays, view.DaysUntilDue) {
			continue
		}
		title, message, kind := reminderFor(view)
		if err := w.notifier.Notify(ctx, patron.ID, title, message); err != nil {
			w.logger.WarnContext(ctx, "failed to send reminder",
				"patron_id", patron.ID.String(),
				"loan_id", loan.ID,
				"error", err)
			continue
		}
		sent++
		w.metrics.IncrementReminders(kind)
	}

	if sent > 0 {
		w.emit(ctx, patron.ID, sent)
	}
	return nil
}

// reminderFor phrases the reminder for a loan that already passed the lead-day
// filter. Overdue loans carry the live fine so the patron sees what waiting
// costs.
func reminderFor(view circmodels.LoanView) (title, message, kind string) {
	switch {
	case view.DaysUntilDue < 0:
		return "Overdue book",
			fmt.Sprintf("%q is %d day(s) overdue. Current fine: %d. Please return it as soon as possible.",
				view.Item.Title, -view.DaysUntilDue, view.CurrentFine),
			"overdue"
	case view.DaysUntilDue == 0:
		return "Book due today",
			fmt.Sprintf("%q is due today (%s).", view.Item.Title, view.DueDate.Format("2006-01-02")),
			"due_soon"
	default:
		return "Due date reminder",
			fmt.Sprintf("%q is due in %d day(s), on %s.",
				view.Item.Title, view.DaysUntilDue, view.DueDate.Format("2006-01-02")),
			"due_soon"
	}
}

func (w *Worker) emit(ctx context.Context, patronID id.PatronID, sent int) {
	if w.emitter == nil {
		return
	}
	err := w.emitter.Emit(ctx, events.Event{
		Type:     events.EventReminderSwept,
		PatronID: patronID,
		Subject:  "reminders",
		Detail:   fmt.Sprintf("sent=%d", sent),
	})
	if err != nil {
		w.logger.WarnContext(ctx, "failed to emit event",
			"event_type", string(events.EventReminderSwept),
			"error", err)
	}
}
