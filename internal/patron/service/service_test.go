package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	circmodels "libripal/internal/circulation/models"
	notifmodels "libripal/internal/notification/models"
	"libripal/internal/patron/models"
	"libripal/internal/patron/store"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/requestcontext"
)

// =============================================================================
// Patron Service Test Suite
// =============================================================================
// Justification for unit tests: account creation on first sight, name
// derivation, preference validation, and the soft-delete lifecycle are pure
// store coordination with no transport or clock dependencies.

type PatronServiceSuite struct {
	suite.Suite
	service *Service
}

func TestPatronServiceSuite(t *testing.T) {
	suite.Run(t, new(PatronServiceSuite))
}

func (s *PatronServiceSuite) SetupTest() {
	s.service = New(store.NewMemory())
}

func (s *PatronServiceSuite) authed(patronID id.PatronID) context.Context {
	return requestcontext.WithPatronID(context.Background(), patronID)
}

// =============================================================================
// EnsurePatron
// =============================================================================

func (s *PatronServiceSuite) TestEnsurePatronCreatesWithDerivedNames() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada.lovelace@example.com")
	s.Require().NoError(err)

	s.Equal("Ada", patron.FirstName)
	s.Equal("Lovelace", patron.LastName)
	s.True(patron.Active)
	s.True(patron.Preferences.EmailReminders)
	s.False(patron.Preferences.TelegramReminders)
	s.Equal([]int{3, 1}, patron.Preferences.ReminderDays)
}

func (s *PatronServiceSuite) TestEnsurePatronIsIdempotent() {
	first, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	second, err := s.service.EnsurePatron(context.Background(), "ADA@Example.COM")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID, "email lookup is case-insensitive")
}

func (s *PatronServiceSuite) TestEnsurePatronRejectsEmptyEmail() {
	_, err := s.service.EnsurePatron(context.Background(), "   ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *PatronServiceSuite) TestEnsurePatronDoesNotResurrectDeactivated() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Deactivate(s.authed(patron.ID)))

	again, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)
	s.False(again.Active)
}

// =============================================================================
// Profile and preferences
// =============================================================================

func (s *PatronServiceSuite) TestUpdateProfile() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	updated, err := s.service.UpdateProfile(s.authed(patron.ID), "Augusta", "King")
	s.Require().NoError(err)
	s.Equal("Augusta King", updated.FullName())
}

func (s *PatronServiceSuite) TestUpdateProfileRequiresFirstName() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	_, err = s.service.UpdateProfile(s.authed(patron.ID), "  ", "King")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *PatronServiceSuite) TestUpdatePreferencesRejectsTelegramWithoutLink() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	_, err = s.service.UpdatePreferences(s.authed(patron.ID), models.Preferences{
		TelegramReminders: true,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *PatronServiceSuite) TestUpdatePreferencesDefaultsEmptyReminderDays() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	updated, err := s.service.UpdatePreferences(s.authed(patron.ID), models.Preferences{
		EmailReminders: true,
	})
	s.Require().NoError(err)
	s.Equal(models.DefaultReminderDays, updated.Preferences.ReminderDays)
}

func (s *PatronServiceSuite) TestUpdatePreferencesRejectsOutOfRangeDays() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	_, err = s.service.UpdatePreferences(s.authed(patron.ID), models.Preferences{
		ReminderDays: []int{3, 99},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// =============================================================================
// Telegram linking
// =============================================================================

func (s *PatronServiceSuite) TestLinkTelegramChatEnablesReminders() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	linked, err := s.service.LinkTelegramChat(context.Background(), patron.ID, 4242)
	s.Require().NoError(err)
	s.Equal(int64(4242), linked.TelegramChatID)
	s.True(linked.Preferences.TelegramReminders)

	found, err := s.service.FindByTelegramChat(context.Background(), 4242)
	s.Require().NoError(err)
	s.Equal(patron.ID, found.ID)
}

// =============================================================================
// Deactivate
// =============================================================================

func (s *PatronServiceSuite) TestDeactivateDisablesAllChannels() {
	patron, err := s.service.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Deactivate(s.authed(patron.ID)))

	got, err := s.service.Get(s.authed(patron.ID))
	s.Require().NoError(err)
	s.False(got.Active)
	s.False(got.Preferences.EmailReminders)
	s.False(got.Preferences.TelegramReminders)

	active, err := s.service.ListActive(context.Background())
	s.Require().NoError(err)
	s.Empty(active)
}

// =============================================================================
// Export
// =============================================================================

type stubLoanLister struct{ loans []*circmodels.Loan }

func (s stubLoanLister) ListHistory(context.Context) ([]*circmodels.Loan, error) {
	return s.loans, nil
}

type stubNotificationLister struct {
	notifications []*notifmodels.Notification
}

func (s stubNotificationLister) List(context.Context) ([]*notifmodels.Notification, error) {
	return s.notifications, nil
}

func (s *PatronServiceSuite) TestExportGathersEverything() {
	svc := New(store.NewMemory(),
		WithLoanLister(stubLoanLister{loans: []*circmodels.Loan{{ID: 1}}}),
		WithNotificationLister(stubNotificationLister{notifications: []*notifmodels.Notification{{ID: 2}}}),
	)
	patron, err := svc.EnsurePatron(context.Background(), "ada@example.com")
	s.Require().NoError(err)

	export, err := svc.ExportData(s.authed(patron.ID))
	s.Require().NoError(err)
	s.Equal(patron.ID, export.Patron.ID)
	s.Len(export.Loans, 1)
	s.Len(export.Notifications, 1)
	s.WithinDuration(time.Now(), export.ExportedAt, time.Minute)
}
