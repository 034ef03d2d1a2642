package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"libripal/internal/circulation/metrics"
	"libripal/internal/circulation/models"
	"libripal/internal/circulation/store"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/events"
	eventsmemory "libripal/pkg/platform/events/store/memory"
	"libripal/pkg/requestcontext"
)

// =============================================================================
// Circulation Service Test Suite
// =============================================================================
// Justification for unit tests: the lending policy (loan cap, renewal cap,
// grace window, fine accrual and freezing) is pure date arithmetic plus
// store coordination; an in-memory store and a pinned clock cover every
// policy branch deterministically.

var circulationTestMetrics = metrics.New()

// epoch is day zero for all tests; day(n) is n days after it.
var epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ id.PatronID, subject, _ string) error {
	n.messages = append(n.messages, subject)
	return nil
}

type CirculationServiceSuite struct {
	suite.Suite
	patronID id.PatronID
	store    *store.Memory
	events   *eventsmemory.InMemoryStore
	notifier *recordingNotifier
	service  *Service
}

func TestCirculationServiceSuite(t *testing.T) {
	suite.Run(t, new(CirculationServiceSuite))
}

func (s *CirculationServiceSuite) SetupTest() {
	s.patronID = id.NewPatronID()
	s.store = store.NewMemory()
	s.events = eventsmemory.NewInMemoryStore()
	s.notifier = &recordingNotifier{}
	s.service = New(s.store,
		WithMetrics(circulationTestMetrics),
		WithEmitter(syncEmitter{store: s.events}),
		WithNotifier(s.notifier),
	)
}

// syncEmitter appends events inline so tests can assert on them without
// draining an async buffer.
type syncEmitter struct {
	store events.Store
}

func (e syncEmitter) Emit(ctx context.Context, event events.Event) error {
	return e.store.Append(ctx, event)
}

// ctxAt returns an authenticated context with the clock pinned to the given
// day.
func (s *CirculationServiceSuite) ctxAt(n int) context.Context {
	ctx := requestcontext.WithPatronID(context.Background(), s.patronID)
	return requestcontext.WithTime(ctx, day(n))
}

func (s *CirculationServiceSuite) item(itemID string) models.ItemSnapshot {
	return models.ItemSnapshot{ItemID: itemID, Title: "Title " + itemID, Author: "Author"}
}

// mustIssue issues an item on the given day and returns its loan view.
func (s *CirculationServiceSuite) mustIssue(dayN int, itemID string) models.LoanView {
	result, err := s.service.Issue(s.ctxAt(dayN), s.item(itemID))
	s.Require().NoError(err)
	s.Require().True(result.Success, result.Message)
	view, ok := result.Data.(models.LoanView)
	s.Require().True(ok)
	return view
}

func (s *CirculationServiceSuite) eventTypes() []events.EventType {
	recorded, err := s.events.ListByPatron(context.Background(), s.patronID)
	s.Require().NoError(err)
	types := make([]events.EventType, 0, len(recorded))
	for _, e := range recorded {
		types = append(types, e.Type)
	}
	return types
}

// =============================================================================
// Issue
// =============================================================================

func (s *CirculationServiceSuite) TestIssueSetsDueDateFifteenDaysOut() {
	view := s.mustIssue(0, "item-1")

	s.Equal(day(15), view.DueDate)
	s.Equal(15, view.DaysUntilDue)
	s.Equal(models.UrgencyNormal, view.Urgency)
	s.Zero(view.CurrentFine)
	s.True(view.CanRenew)
	s.Contains(s.eventTypes(), events.EventLoanIssued)
	s.Contains(s.notifier.messages, "Book issued")
}

func (s *CirculationServiceSuite) TestIssueDeniedAtLoanLimit() {
	for i := range models.MaxBooksPerPatron {
		s.mustIssue(0, fmt.Sprintf("item-%d", i))
	}

	result, err := s.service.Issue(s.ctxAt(0), s.item("item-extra"))
	s.Require().NoError(err, "a policy denial is a result, not an error")
	s.False(result.Success)
	s.Contains(result.Message, "Loan limit reached")
	s.Contains(s.eventTypes(), events.EventLoanDenied)

	open, err := s.service.ListOpenLoans(s.ctxAt(0))
	s.Require().NoError(err)
	s.Len(open, models.MaxBooksPerPatron)
}

func (s *CirculationServiceSuite) TestIssueDeniedForDuplicateItem() {
	s.mustIssue(0, "item-1")

	result, err := s.service.Issue(s.ctxAt(0), s.item("item-1"))
	s.Require().NoError(err)
	s.False(result.Success)
	s.Contains(result.Message, "already have this book")
}

func (s *CirculationServiceSuite) TestIssueAllowedAgainAfterReturn() {
	view := s.mustIssue(0, "item-1")

	result, err := s.service.Return(s.ctxAt(5), view.ID)
	s.Require().NoError(err)
	s.Require().True(result.Success)

	reissued := s.mustIssue(6, "item-1")
	s.Equal(day(21), reissued.DueDate)
}

func (s *CirculationServiceSuite) TestIssueRequiresItemFields() {
	_, err := s.service.Issue(s.ctxAt(0), models.ItemSnapshot{ItemID: "x"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *CirculationServiceSuite) TestIssueRequiresAuthenticatedPatron() {
	ctx := requestcontext.WithTime(context.Background(), day(0))
	_, err := s.service.Issue(ctx, s.item("item-1"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// =============================================================================
// Renew
// =============================================================================

func (s *CirculationServiceSuite) TestRenewExtendsFromPreviousDueDate() {
	view := s.mustIssue(0, "item-1")

	result, err := s.service.Renew(s.ctxAt(10), view.ID)
	s.Require().NoError(err)
	s.Require().True(result.Success, result.Message)

	renewed, ok := result.Data.(models.LoanView)
	s.Require().True(ok)
	s.Equal(day(30), renewed.DueDate, "extension anchors on the old due date, not on today")
	s.Equal(1, renewed.RenewalCount)
	s.Contains(s.eventTypes(), events.EventLoanRenewed)
}

func (s *CirculationServiceSuite) TestRenewDeniedAtRenewalLimit() {
	view := s.mustIssue(0, "item-1")

	for i := range models.MaxRenewals {
		result, err := s.service.Renew(s.ctxAt(i+1), view.ID)
		s.Require().NoError(err)
		s.Require().True(result.Success, result.Message)
	}

	result, err := s.service.Renew(s.ctxAt(3), view.ID)
	s.Require().NoError(err)
	s.False(result.Success)
	s.Contains(result.Message, "Renewal limit reached")
}

func (s *CirculationServiceSuite) TestRenewWithinGraceAfterDue() {
	view := s.mustIssue(0, "item-1")

	// Due day 15; three days past due is the last renewable day.
	result, err := s.service.Renew(s.ctxAt(18), view.ID)
	s.Require().NoError(err)
	s.True(result.Success, result.Message)
}

func (s *CirculationServiceSuite) TestRenewDeniedPastGrace() {
	view := s.mustIssue(0, "item-1")

	result, err := s.service.Renew(s.ctxAt(19), view.ID)
	s.Require().NoError(err)
	s.False(result.Success)
	s.Contains(result.Message, "overdue")
	s.Contains(s.eventTypes(), events.EventLoanDenied)
}

func (s *CirculationServiceSuite) TestRenewUnknownLoanFails() {
	result, err := s.service.Renew(s.ctxAt(0), id.LoanID(404))
	s.Require().NoError(err)
	s.False(result.Success)
	s.Equal("No open loan found.", result.Message)
}

func (s *CirculationServiceSuite) TestRenewAnotherPatronsLoanFails() {
	view := s.mustIssue(0, "item-1")

	other := requestcontext.WithPatronID(context.Background(), id.NewPatronID())
	other = requestcontext.WithTime(other, day(1))

	result, err := s.service.Renew(other, view.ID)
	s.Require().NoError(err)
	s.False(result.Success, "a loan is only visible to its own patron")
}

// =============================================================================
// Return and fines
// =============================================================================

func (s *CirculationServiceSuite) TestReturnOnTimeFreezesNoFine() {
	view := s.mustIssue(0, "item-1")

	result, err := s.service.Return(s.ctxAt(15), view.ID)
	s.Require().NoError(err)
	s.Require().True(result.Success)
	s.Equal("Book returned on time.", result.Message)

	history, err := s.service.ListHistory(s.ctxAt(15))
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(models.StatusReturned, history[0].Status)
	s.Zero(history[0].FineAmount)
	s.Require().NotNil(history[0].ReturnDate)
	s.Equal(day(15), *history[0].ReturnDate)

	// On-time returns still confirm to the patron, just without the
	// fine warning tone.
	s.Contains(s.notifier.messages, "Book returned")
	s.NotContains(s.notifier.messages, "Fine due")
}

func (s *CirculationServiceSuite) TestReturnLateFreezesFine() {
	view := s.mustIssue(0, "item-1")

	// Five days past the day-15 due date.
	result, err := s.service.Return(s.ctxAt(20), view.ID)
	s.Require().NoError(err)
	s.Require().True(result.Success)
	s.Contains(result.Message, "250")

	history, err := s.service.ListHistory(s.ctxAt(20))
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(int64(5*models.FinePerDay), history[0].FineAmount)
	s.Contains(s.notifier.messages, "Fine due")
}

func (s *CirculationServiceSuite) TestReturnIsTerminal() {
	view := s.mustIssue(0, "item-1")

	result, err := s.service.Return(s.ctxAt(5), view.ID)
	s.Require().NoError(err)
	s.Require().True(result.Success)

	again, err := s.service.Return(s.ctxAt(6), view.ID)
	s.Require().NoError(err)
	s.False(again.Success)
	s.Equal("No open loan found.", again.Message)

	renewed, err := s.service.Renew(s.ctxAt(6), view.ID)
	s.Require().NoError(err)
	s.False(renewed.Success)
}

func (s *CirculationServiceSuite) TestFrozenFineUnaffectedByLaterDays() {
	view := s.mustIssue(0, "item-1")

	_, err := s.service.Return(s.ctxAt(20), view.ID)
	s.Require().NoError(err)

	history, err := s.service.ListHistory(s.ctxAt(100))
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(int64(250), history[0].FineAmount, "a frozen fine never accrues further")
}

// =============================================================================
// Views and fine summary
// =============================================================================

func (s *CirculationServiceSuite) TestOpenLoanFineAccruesWithTime() {
	s.mustIssue(0, "item-1")

	var previous int64
	for dayN := 10; dayN <= 40; dayN++ {
		open, err := s.service.ListOpenLoans(s.ctxAt(dayN))
		s.Require().NoError(err)
		s.Require().Len(open, 1)
		s.GreaterOrEqual(open[0].CurrentFine, previous, "live fine never decreases as days pass")
		previous = open[0].CurrentFine
	}
	s.Equal(int64(25*models.FinePerDay), previous)
}

func (s *CirculationServiceSuite) TestListOpenLoansDerivesUrgency() {
	s.mustIssue(0, "item-overdue")   // due day 15
	s.mustIssue(4, "item-due-soon")  // due day 19
	s.mustIssue(10, "item-normal")   // due day 25

	open, err := s.service.ListOpenLoans(s.ctxAt(16))
	s.Require().NoError(err)
	s.Require().Len(open, 3)

	byItem := map[string]models.LoanView{}
	for _, view := range open {
		byItem[view.Item.ItemID] = view
	}
	s.Equal(models.UrgencyOverdue, byItem["item-overdue"].Urgency)
	s.Equal(int64(50), byItem["item-overdue"].CurrentFine)
	s.Equal(models.UrgencyDueSoon, byItem["item-due-soon"].Urgency)
	s.Equal(models.UrgencyNormal, byItem["item-normal"].Urgency)
}

func (s *CirculationServiceSuite) TestOutstandingFinesSumsOverdueLoansOnly() {
	s.mustIssue(0, "item-1") // due day 15
	s.mustIssue(2, "item-2") // due day 17
	s.mustIssue(9, "item-3") // due day 24

	summary, err := s.service.OutstandingFines(s.ctxAt(20))
	s.Require().NoError(err)
	s.Equal(int64(5*models.FinePerDay+3*models.FinePerDay), summary.TotalFine)
	s.Len(summary.OverdueLoans, 2)
}

func (s *CirculationServiceSuite) TestOutstandingFinesZeroWhenNothingOverdue() {
	s.mustIssue(0, "item-1")

	summary, err := s.service.OutstandingFines(s.ctxAt(15))
	s.Require().NoError(err)
	s.Zero(summary.TotalFine)
	s.Empty(summary.OverdueLoans)
}

// =============================================================================
// Storage failures
// =============================================================================

type failingStore struct {
	store.LoanStore
}

var errDown = errors.New("connection refused")

func (failingStore) Issue(context.Context, *models.Loan) error { return errDown }
func (failingStore) ListOpen(context.Context, id.PatronID) ([]*models.Loan, error) {
	return nil, errDown
}
func (failingStore) Transact(context.Context, func(ctx context.Context) error) error {
	return errDown
}

func (s *CirculationServiceSuite) TestStorageFailurePropagatesAsInternal() {
	svc := New(failingStore{}, WithMetrics(circulationTestMetrics))
	ctx := s.ctxAt(0)

	_, err := svc.Issue(ctx, s.item("item-1"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = svc.Renew(ctx, id.LoanID(1))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = svc.ListOpenLoans(ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
