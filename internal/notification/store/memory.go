package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"libripal/internal/notification/models"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/sentinel"
)

// Memory is an in-process NotificationStore and LinkCodeStore for tests and
// development.
type Memory struct {
	mu            sync.Mutex
	nextID        id.NotificationID
	notifications map[id.NotificationID]*models.Notification
	linkCodes     map[id.PatronID]*LinkCode
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:        1,
		notifications: make(map[id.NotificationID]*models.Notification),
		linkCodes:     make(map[id.PatronID]*LinkCode),
	}
}

// Create implements NotificationStore.
func (m *Memory) Create(_ context.Context, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notification.ID = m.nextID
	m.nextID++
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	stored := *notification
	m.notifications[notification.ID] = &stored
	return nil
}

// ListByPatron implements NotificationStore.
func (m *Memory) ListByPatron(_ context.Context, patronID id.PatronID) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.Notification
	for _, n := range m.notifications {
		if n.PatronID != patronID {
			continue
		}
		copied := *n
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// MarkRead implements NotificationStore.
func (m *Memory) MarkRead(_ context.Context, patronID id.PatronID, notificationID id.NotificationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[notificationID]
	if !ok || n.PatronID != patronID {
		return sentinel.ErrNotFound
	}
	n.Read = true
	return nil
}

// SaveLinkCode implements LinkCodeStore.
func (m *Memory) SaveLinkCode(_ context.Context, code *LinkCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *code
	m.linkCodes[code.PatronID] = &stored
	return nil
}

// ListPendingLinkCodes implements LinkCodeStore.
func (m *Memory) ListPendingLinkCodes(_ context.Context, now time.Time) ([]*LinkCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*LinkCode
	for _, code := range m.linkCodes {
		if code.Used || now.After(code.ExpiresAt) {
			continue
		}
		copied := *code
		result = append(result, &copied)
	}
	return result, nil
}

// MarkLinkCodeUsed implements LinkCodeStore.
func (m *Memory) MarkLinkCodeUsed(_ context.Context, patronID id.PatronID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.linkCodes[patronID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if code.Used {
		return sentinel.ErrAlreadyUsed
	}
	code.Used = true
	return nil
}
