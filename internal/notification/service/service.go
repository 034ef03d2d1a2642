// Package service stores notifications and fans them out to the patron's
// channels. The store write is the source of truth; channel delivery is best
// effort and never fails the calling operation.
package service

import (
	"context"
	"errors"
	"log/slog"

	"libripal/internal/notification/metrics"
	"libripal/internal/notification/models"
	"libripal/internal/notification/store"
	patronmodels "libripal/internal/patron/models"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/events"
	"libripal/pkg/platform/sentinel"
	"libripal/pkg/requestcontext"
)

// PatronDirectory is the patron surface the dispatcher needs.
type PatronDirectory interface {
	Lookup(ctx context.Context, patronID id.PatronID) (*patronmodels.Patron, error)
	LinkTelegramChat(ctx context.Context, patronID id.PatronID, chatID int64) (*patronmodels.Patron, error)
}

// EmailSender delivers one mail message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TelegramSender delivers one chat message.
type TelegramSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, event events.Event) error
}

// Service persists and dispatches notifications.
type Service struct {
	store    store.NotificationStore
	codes    store.LinkCodeStore
	patrons  PatronDirectory
	email    EmailSender
	telegram TelegramSender
	emitter  Emitter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the notification metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEmail sets the email channel. Without one, email dispatch is skipped.
func WithEmail(sender EmailSender) Option {
	return func(s *Service) { s.email = sender }
}

// WithTelegram sets the telegram channel. Without one, telegram dispatch is
// skipped.
func WithTelegram(sender TelegramSender) Option {
	return func(s *Service) { s.telegram = sender }
}

// WithEmitter sets the domain event publisher.
func WithEmitter(e Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// New builds the notification service.
func New(notificationStore store.NotificationStore, codeStore store.LinkCodeStore, patrons PatronDirectory, opts ...Option) *Service {
	s := &Service{
		store:   notificationStore,
		codes:   codeStore,
		patrons: patrons,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify stores the message and dispatches it over the patron's enabled
// channels. Channel failures are logged and counted but do not propagate;
// only the store write can fail the call.
func (s *Service) Notify(ctx context.Context, patronID id.PatronID, title, message string) error {
	notification := &models.Notification{
		PatronID: patronID,
		Title:    title,
		Message:  message,
	}
	if err := s.store.Create(ctx, notification); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}
	s.metrics.IncrementCreated()

	patron, err := s.patrons.Lookup(ctx, patronID)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping dispatch for unknown patron",
			"request_id", requestcontext.RequestID(ctx),
			"patron_id", patronID,
			"error", err)
		return nil
	}
	if !patron.Active {
		return nil
	}

	if patron.Preferences.EmailReminders && s.email != nil {
		s.dispatch(ctx, patron, "email", func() error {
			return s.email.Send(ctx, patron.Email, title, message)
		})
	}
	if patron.Preferences.TelegramReminders && patron.TelegramChatID != 0 && s.telegram != nil {
		s.dispatch(ctx, patron, "telegram", func() error {
			return s.telegram.SendMessage(ctx, patron.TelegramChatID, title+"\n\n"+message)
		})
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, patron *patronmodels.Patron, channel string, send func() error) {
	if err := send(); err != nil {
		s.metrics.IncrementDispatch(channel, "error")
		s.emit(ctx, events.EventNotificationFailed, patron.ID, channel, err.Error())
		s.logger.WarnContext(ctx, "notification dispatch failed",
			"request_id", requestcontext.RequestID(ctx),
			"patron_id", patron.ID,
			"channel", channel,
			"error", err)
		return
	}
	s.metrics.IncrementDispatch(channel, "ok")
	s.emit(ctx, events.EventNotificationSent, patron.ID, channel, "sent")
}

// List returns the calling patron's notifications, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Notification, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	notifications, err := s.store.ListByPatron(ctx, patronID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead marks one of the calling patron's notifications as read.
func (s *Service) MarkRead(ctx context.Context, notificationID id.NotificationID) error {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	err := s.store.MarkRead(ctx, patronID, notificationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	return nil
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
