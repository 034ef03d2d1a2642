package store

import (
	"context"
	"sort"
	"sync"

	"libripal/internal/circulation/models"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/sentinel"
)

type memTxKey struct{}

// Memory is an in-process LoanStore for tests and development. One mutex
// serializes every operation, which trivially satisfies the atomicity the
// interface demands.
type Memory struct {
	mu     sync.Mutex
	nextID id.LoanID
	loans  map[id.LoanID]*models.Loan
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1, loans: make(map[id.LoanID]*models.Loan)}
}

// lock acquires the store mutex unless the context is already inside a
// Transact, which holds it for the whole callback.
func (m *Memory) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// Transact implements LoanStore.
func (m *Memory) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, memTxKey{}, struct{}{}))
}

// Issue implements LoanStore.
func (m *Memory) Issue(ctx context.Context, loan *models.Loan) error {
	defer m.lock(ctx)()

	open := 0
	for _, existing := range m.loans {
		if existing.PatronID != loan.PatronID || existing.Status != models.StatusIssued {
			continue
		}
		if existing.Item.ItemID == loan.Item.ItemID {
			return ErrDuplicateLoan
		}
		open++
	}
	if open >= models.MaxBooksPerPatron {
		return ErrLoanLimitReached
	}

	loan.ID = m.nextID
	m.nextID++
	stored := *loan
	m.loans[loan.ID] = &stored
	return nil
}

// GetOpenForUpdate implements LoanStore.
func (m *Memory) GetOpenForUpdate(ctx context.Context, patronID id.PatronID, loanID id.LoanID) (*models.Loan, error) {
	defer m.lock(ctx)()

	loan, ok := m.loans[loanID]
	if !ok || loan.PatronID != patronID || loan.Status != models.StatusIssued {
		return nil, sentinel.ErrNotFound
	}
	copied := *loan
	return &copied, nil
}

// Update implements LoanStore.
func (m *Memory) Update(ctx context.Context, loan *models.Loan) error {
	defer m.lock(ctx)()

	if _, ok := m.loans[loan.ID]; !ok {
		return sentinel.ErrNotFound
	}
	stored := *loan
	m.loans[loan.ID] = &stored
	return nil
}

// ListOpen implements LoanStore.
func (m *Memory) ListOpen(ctx context.Context, patronID id.PatronID) ([]*models.Loan, error) {
	return m.ListByStatuses(ctx, patronID, models.StatusIssued)
}

// ListByStatuses implements LoanStore.
func (m *Memory) ListByStatuses(ctx context.Context, patronID id.PatronID, statuses ...models.Status) ([]*models.Loan, error) {
	defer m.lock(ctx)()

	wanted := make(map[models.Status]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}

	var result []*models.Loan
	for _, loan := range m.loans {
		if loan.PatronID != patronID {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[loan.Status]; !ok {
				continue
			}
		}
		copied := *loan
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
