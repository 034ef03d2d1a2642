package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"libripal/internal/patron/models"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/sentinel"
)

// Memory is an in-process PatronStore for tests and development.
type Memory struct {
	mu      sync.RWMutex
	patrons map[id.PatronID]*models.Patron
	byEmail map[string]id.PatronID
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		patrons: make(map[id.PatronID]*models.Patron),
		byEmail: make(map[string]id.PatronID),
	}
}

// Create implements PatronStore.
func (m *Memory) Create(_ context.Context, patron *models.Patron) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(patron.Email)
	if _, exists := m.byEmail[email]; exists {
		return sentinel.ErrConflict
	}

	patron.Email = email
	now := time.Now().UTC()
	patron.CreatedAt = now
	patron.UpdatedAt = now

	stored := *patron
	m.patrons[patron.ID] = &stored
	m.byEmail[email] = patron.ID
	return nil
}

// GetByID implements PatronStore.
func (m *Memory) GetByID(_ context.Context, patronID id.PatronID) (*models.Patron, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	patron, ok := m.patrons[patronID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *patron
	return &copied, nil
}

// GetByEmail implements PatronStore.
func (m *Memory) GetByEmail(_ context.Context, email string) (*models.Patron, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	patronID, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *m.patrons[patronID]
	return &copied, nil
}

// GetByTelegramChatID implements PatronStore.
func (m *Memory) GetByTelegramChatID(_ context.Context, chatID int64) (*models.Patron, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, patron := range m.patrons {
		if patron.TelegramChatID == chatID && chatID != 0 {
			copied := *patron
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update implements PatronStore.
func (m *Memory) Update(_ context.Context, patron *models.Patron) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.patrons[patron.ID]
	if !ok {
		return sentinel.ErrNotFound
	}

	patron.Email = strings.ToLower(patron.Email)
	patron.CreatedAt = existing.CreatedAt
	patron.UpdatedAt = time.Now().UTC()

	delete(m.byEmail, existing.Email)
	stored := *patron
	m.patrons[patron.ID] = &stored
	m.byEmail[patron.Email] = patron.ID
	return nil
}

// ListActive implements PatronStore.
func (m *Memory) ListActive(_ context.Context) ([]*models.Patron, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Patron
	for _, patron := range m.patrons {
		if !patron.Active {
			continue
		}
		copied := *patron
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}
