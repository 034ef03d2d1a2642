package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	circmodels "libripal/internal/circulation/models"
	circstore "libripal/internal/circulation/store"
	patronmodels "libripal/internal/patron/models"
	patronservice "libripal/internal/patron/service"
	patronstore "libripal/internal/patron/store"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/events"
	eventsmemory "libripal/pkg/platform/events/store/memory"
	"libripal/pkg/requestcontext"
)

var sweepEpoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return sweepEpoch.AddDate(0, 0, n) }

type sentReminder struct {
	patronID id.PatronID
	title    string
	message  string
}

// recordingNotifier captures reminders and optionally fails for one patron.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentReminder
	failFor id.PatronID
}

func (n *recordingNotifier) Notify(_ context.Context, patronID id.PatronID, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if patronID == n.failFor {
		return errors.New("channel down")
	}
	n.sent = append(n.sent, sentReminder{patronID: patronID, title: title, message: message})
	return nil
}

func (n *recordingNotifier) forPatron(patronID id.PatronID) []sentReminder {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentReminder
	for _, s := range n.sent {
		if s.patronID == patronID {
			out = append(out, s)
		}
	}
	return out
}

type ReminderWorkerSuite struct {
	suite.Suite

	patrons  *patronservice.Service
	loans    *circstore.Memory
	notifier *recordingNotifier
	events   *eventsmemory.InMemoryStore
	worker   *Worker
}

func TestReminderWorkerSuite(t *testing.T) {
	suite.Run(t, new(ReminderWorkerSuite))
}

func (s *ReminderWorkerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.patrons = patronservice.New(patronstore.NewMemory(), patronservice.WithLogger(logger))
	s.loans = circstore.NewMemory()
	s.notifier = &recordingNotifier{}
	s.events = eventsmemory.NewInMemoryStore()
	s.worker = New(s.patrons, s.loans, s.notifier,
		WithLogger(logger),
		WithEmitter(syncEmitter{store: s.events}),
	)
}

type syncEmitter struct {
	store events.Store
}

func (e syncEmitter) Emit(ctx context.Context, event events.Event) error {
	return e.store.Append(ctx, event)
}

func (s *ReminderWorkerSuite) newPatron(email string) *patronmodels.Patron {
	patron, err := s.patrons.EnsurePatron(context.Background(), email)
	s.Require().NoError(err)
	return patron
}

func (s *ReminderWorkerSuite) issueLoan(patronID id.PatronID, itemID, title string, issuedOn time.Time) {
	loan := &circmodels.Loan{
		PatronID:  patronID,
		Item:      circmodels.ItemSnapshot{ItemID: itemID, Title: title, Author: "Unknown"},
		IssueDate: circmodels.DateOnly(issuedOn),
		DueDate:   circmodels.DueDateFor(circmodels.DateOnly(issuedOn)),
		Status:    circmodels.StatusIssued,
	}
	s.Require().NoError(s.loans.Issue(context.Background(), loan))
}

// =============================================================================
// Lead-day selection
// =============================================================================

// Default preferences remind 3 days and 1 day before the due date. A loan
// issued on day 0 is due on day 15, so day 12 and day 14 fire and day 13
// stays quiet.
func (s *ReminderWorkerSuite) TestRemindsOnConfiguredLeadDays() {
	patron := s.newPatron("ada@example.com")
	s.issueLoan(patron.ID, "bk-1", "The Analytical Engine", day(0))

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(12)))
	sent := s.notifier.forPatron(patron.ID)
	s.Require().Len(sent, 1)
	s.Equal("Due date reminder", sent[0].title)
	s.Contains(sent[0].message, "The Analytical Engine")
	s.Contains(sent[0].message, "due in 3 day(s)")
	s.Contains(sent[0].message, "2024-03-16")

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(13)))
	s.Len(s.notifier.forPatron(patron.ID), 1)

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(14)))
	sent = s.notifier.forPatron(patron.ID)
	s.Require().Len(sent, 2)
	s.Contains(sent[1].message, "due in 1 day(s)")
}

// Custom lead days replace the defaults entirely.
func (s *ReminderWorkerSuite) TestCustomLeadDays() {
	patron := s.newPatron("ada@example.com")
	ctx := requestcontext.WithPatronID(context.Background(), patron.ID)
	_, err := s.patrons.UpdatePreferences(ctx, patronmodels.Preferences{
		EmailReminders: true,
		ReminderDays:   []int{7, 0},
	})
	s.Require().NoError(err)
	s.issueLoan(patron.ID, "bk-1", "Flatland", day(0))

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(8)))
	sent := s.notifier.forPatron(patron.ID)
	s.Require().Len(sent, 1)
	s.Contains(sent[0].message, "due in 7 day(s)")

	// The old default lead day no longer fires.
	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(12)))
	s.Len(s.notifier.forPatron(patron.ID), 1)

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(15)))
	sent = s.notifier.forPatron(patron.ID)
	s.Require().Len(sent, 2)
	s.Equal("Book due today", sent[1].title)
}

// =============================================================================
// Overdue loans
// =============================================================================

// Overdue loans are reminded on every sweep regardless of lead days, and the
// message carries the live fine.
func (s *ReminderWorkerSuite) TestOverdueLoanAlwaysReminded() {
	patron := s.newPatron("ada@example.com")
	s.issueLoan(patron.ID, "bk-1", "Flatland", day(0))

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(20)))
	sent := s.notifier.forPatron(patron.ID)
	s.Require().Len(sent, 1)
	s.Equal("Overdue book", sent[0].title)
	s.Contains(sent[0].message, "5 day(s) overdue")
	s.Contains(sent[0].message, "Current fine: 250")

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(21)))
	s.Len(s.notifier.forPatron(patron.ID), 2)
}

// =============================================================================
// Patron filtering
// =============================================================================

// A patron with every reminder channel switched off is skipped even when a
// loan is overdue.
func (s *ReminderWorkerSuite) TestChannelsOffSkipsPatron() {
	patron := s.newPatron("ada@example.com")
	ctx := requestcontext.WithPatronID(context.Background(), patron.ID)
	_, err := s.patrons.UpdatePreferences(ctx, patronmodels.Preferences{})
	s.Require().NoError(err)
	s.issueLoan(patron.ID, "bk-1", "Flatland", day(0))

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(20)))
	s.Empty(s.notifier.forPatron(patron.ID))
}

// A deactivated patron never appears in the sweep.
func (s *ReminderWorkerSuite) TestDeactivatedPatronSkipped() {
	patron := s.newPatron("ada@example.com")
	s.issueLoan(patron.ID, "bk-1", "Flatland", day(0))
	ctx := requestcontext.WithPatronID(context.Background(), patron.ID)
	s.Require().NoError(s.patrons.Deactivate(ctx))

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(20)))
	s.Empty(s.notifier.sent)
}

// =============================================================================
// Fault isolation
// =============================================================================

// One patron's broken channel does not block the rest of the sweep.
func (s *ReminderWorkerSuite) TestNotifierFailureDoesNotStopSweep() {
	broken := s.newPatron("broken@example.com")
	healthy := s.newPatron("healthy@example.com")
	s.issueLoan(broken.ID, "bk-1", "Flatland", day(0))
	s.issueLoan(healthy.ID, "bk-2", "Flatland", day(0))
	s.notifier.failFor = broken.ID

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(20)))
	s.Empty(s.notifier.forPatron(broken.ID))
	s.Len(s.notifier.forPatron(healthy.ID), 1)
}

// =============================================================================
// Events
// =============================================================================

func (s *ReminderWorkerSuite) TestSweepEmitsEventPerRemindedPatron() {
	reminded := s.newPatron("reminded@example.com")
	quiet := s.newPatron("quiet@example.com")
	s.issueLoan(reminded.ID, "bk-1", "Flatland", day(0))
	s.issueLoan(reminded.ID, "bk-2", "The Analytical Engine", day(0))

	s.Require().NoError(s.worker.RunOnceAt(context.Background(), day(20)))

	got, err := s.events.ListByPatron(context.Background(), reminded.ID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(events.EventReminderSwept, got[0].Type)
	s.Equal("sent=2", got[0].Detail)

	got, err = s.events.ListByPatron(context.Background(), quiet.ID)
	s.Require().NoError(err)
	s.Empty(got)
}

// =============================================================================
// Message phrasing
// =============================================================================

func TestReminderFor(t *testing.T) {
	due := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	view := func(daysUntilDue int, fine int64) circmodels.LoanView {
		return circmodels.LoanView{
			Loan: circmodels.Loan{
				Item:    circmodels.ItemSnapshot{Title: "Flatland"},
				DueDate: due,
			},
			DaysUntilDue: daysUntilDue,
			CurrentFine:  fine,
		}
	}

	tests := []struct {
		name         string
		daysUntilDue int
		fine         int64
		wantTitle    string
		wantKind     string
		wantIn       string
	}{
		{"overdue", -4, 200, "Overdue book", "overdue", "4 day(s) overdue"},
		{"due today", 0, 0, "Book due today", "due_soon", "due today"},
		{"due soon", 3, 0, "Due date reminder", "due_soon", "due in 3 day(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, message, kind := reminderFor(view(tt.daysUntilDue, tt.fine))
			require.Equal(t, tt.wantTitle, title)
			require.Equal(t, tt.wantKind, kind)
			require.True(t, strings.Contains(message, tt.wantIn),
				fmt.Sprintf("message %q should mention %q", message, tt.wantIn))
		})
	}
}
