// Package service manages patron accounts. Accounts are created lazily on
// first authenticated request; deletion is a soft deactivation so the loan
// ledger keeps its history.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"libripal/internal/patron/models"
	"libripal/internal/patron/store"
	platformmetrics "libripal/internal/platform/metrics"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/email"
	"libripal/pkg/platform/events"
	"libripal/pkg/platform/sentinel"
	"libripal/pkg/requestcontext"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, event events.Event) error
}

// Service runs patron account management over a patron store.
type Service struct {
	store         store.PatronStore
	emitter       Emitter
	loans         LoanLister
	notifications NotificationLister
	logger        *slog.Logger
	metrics       *platformmetrics.Metrics
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the platform metrics collector.
func WithMetrics(m *platformmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEmitter sets the domain event publisher.
func WithEmitter(e Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// New builds the patron service.
func New(patronStore store.PatronStore, opts ...Option) *Service {
	s := &Service{
		store:  patronStore,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsurePatron fetches the patron for the email, creating the account on
// first sight with names derived from the address. A deactivated account
// stays deactivated; reauthenticating does not resurrect it.
func (s *Service) EnsurePatron(ctx context.Context, emailAddr string) (*models.Patron, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}

	patron, err := s.store.GetByEmail(ctx, emailAddr)
	if err == nil {
		return patron, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up patron")
	}

	first, last := email.DeriveNameFromEmail(emailAddr)
	patron = &models.Patron{
		ID:          id.NewPatronID(),
		Email:       emailAddr,
		FirstName:   first,
		LastName:    last,
		Preferences: models.DefaultPreferences(),
		Active:      true,
	}

	err = s.store.Create(ctx, patron)
	if errors.Is(err, sentinel.ErrConflict) {
		// Lost a race with a concurrent first request for the same email.
		patron, err = s.store.GetByEmail(ctx, emailAddr)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up patron after conflict")
		}
		return patron, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create patron")
	}

	s.metrics.IncrementPatronsCreated()
	s.emit(ctx, events.EventPatronCreated, patron.ID, emailAddr, "created")
	s.logger.InfoContext(ctx, "patron created",
		"request_id", requestcontext.RequestID(ctx),
		"patron_id", patron.ID)
	return patron, nil
}

// Get returns the calling patron's account.
func (s *Service) Get(ctx context.Context) (*models.Patron, error) {
	return s.current(ctx)
}

// UpdateProfile changes the patron's display names.
func (s *Service) UpdateProfile(ctx context.Context, firstName, lastName string) (*models.Patron, error) {
	patron, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	patron.FirstName = strings.TrimSpace(firstName)
	patron.LastName = strings.TrimSpace(lastName)
	if patron.FirstName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "first name is required")
	}

	if err := s.store.Update(ctx, patron); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}
	return patron, nil
}

// UpdatePreferences replaces the patron's reminder preferences. Telegram
// reminders require a linked chat.
func (s *Service) UpdatePreferences(ctx context.Context, prefs models.Preferences) (*models.Patron, error) {
	patron, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	if prefs.TelegramReminders && patron.TelegramChatID == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "link a telegram account before enabling telegram reminders")
	}
	for _, day := range prefs.ReminderDays {
		if day < 0 || day > models.MaxReminderLeadDays {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "reminder days must be between 0 and %d", models.MaxReminderLeadDays)
		}
	}
	if len(prefs.ReminderDays) == 0 {
		prefs.ReminderDays = append([]int{}, models.DefaultReminderDays...)
	}

	patron.Preferences = prefs
	if err := s.store.Update(ctx, patron); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update preferences")
	}
	return patron, nil
}

// LinkTelegramChat binds a Telegram chat to the patron and switches telegram
// reminders on. Called by the link-code redemption flow, not a handler.
func (s *Service) LinkTelegramChat(ctx context.Context, patronID id.PatronID, chatID int64) (*models.Patron, error) {
	if chatID == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "chat id is required")
	}

	patron, err := s.store.GetByID(ctx, patronID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "patron not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up patron")
	}

	patron.TelegramChatID = chatID
	patron.Preferences.TelegramReminders = true
	if err := s.store.Update(ctx, patron); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link telegram chat")
	}
	return patron, nil
}

// Lookup returns a patron by ID, for callers outside the request path such
// as the notification dispatcher and the reminder sweep.
func (s *Service) Lookup(ctx context.Context, patronID id.PatronID) (*models.Patron, error) {
	patron, err := s.store.GetByID(ctx, patronID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "patron not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up patron")
	}
	return patron, nil
}

// FindByTelegramChat returns the patron bound to a chat, for the bot.
func (s *Service) FindByTelegramChat(ctx context.Context, chatID int64) (*models.Patron, error) {
	patron, err := s.store.GetByTelegramChatID(ctx, chatID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no patron linked to this chat")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up patron")
	}
	return patron, nil
}

// ListActive returns every active patron, for the reminder sweep.
func (s *Service) ListActive(ctx context.Context) ([]*models.Patron, error) {
	patrons, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list patrons")
	}
	return patrons, nil
}

// Deactivate soft-deletes the calling patron's account and disables every
// reminder channel.
func (s *Service) Deactivate(ctx context.Context) error {
	patron, err := s.current(ctx)
	if err != nil {
		return err
	}

	patron.Active = false
	patron.Preferences.EmailReminders = false
	patron.Preferences.TelegramReminders = false
	if err := s.store.Update(ctx, patron); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate patron")
	}

	s.emit(ctx, events.EventPatronDeactivated, patron.ID, patron.Email, "deactivated")
	s.logger.InfoContext(ctx, "patron deactivated",
		"request_id", requestcontext.RequestID(ctx),
		"patron_id", patron.ID)
	return nil
}

func (s *Service) current(ctx context.Context) (*models.Patron, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	patron, err := s.store.GetByID(ctx, patronID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "patron not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up patron")
	}
	return patron, nil
}

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
