package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"libripal/internal/circulation/models"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/sentinel"
	txcontext "libripal/pkg/platform/tx"
)

// Postgres persists loans in PostgreSQL. Issue runs one transaction that
// locks the patron's open loans before checking limits, which closes the
// check-then-insert race the interface documents.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed loan store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

// Transact implements LoanStore.
func (p *Postgres) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin loan tx: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit loan tx: %w", err)
	}
	return nil
}

// Issue implements LoanStore.
func (p *Postgres) Issue(ctx context.Context, loan *models.Loan) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the patron's open loans so a concurrent issue serializes behind
	// this transaction before we count.
	rows, err := tx.QueryContext(ctx, `
		SELECT item_id FROM loans
		WHERE patron_id = $1 AND status = $2
		FOR UPDATE
	`, loan.PatronID.String(), string(models.StatusIssued))
	if err != nil {
		return fmt.Errorf("lock open loans: %w", err)
	}

	open := 0
	duplicate := false
	for rows.Next() {
		var itemID string
		if err := rows.Scan(&itemID); err != nil {
			rows.Close()
			return fmt.Errorf("scan open loan: %w", err)
		}
		if itemID == loan.Item.ItemID {
			duplicate = true
		}
		open++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate open loans: %w", err)
	}

	if duplicate {
		return ErrDuplicateLoan
	}
	if open >= models.MaxBooksPerPatron {
		return ErrLoanLimitReached
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO loans (patron_id, item_id, item_title, item_author,
			issue_date, due_date, renewal_count, status, fine_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
		RETURNING id
	`,
		loan.PatronID.String(),
		loan.Item.ItemID,
		loan.Item.Title,
		loan.Item.Author,
		loan.IssueDate,
		loan.DueDate,
		loan.RenewalCount,
		string(loan.Status),
	).Scan(&loan.ID)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit issue tx: %w", err)
	}
	return nil
}

const loanColumns = `id, patron_id, item_id, item_title, item_author,
	issue_date, due_date, renewal_count, status, fine_amount, return_date`

// GetOpenForUpdate implements LoanStore. Outside a Transact the lock clause
// still runs in its own implicit transaction; callers who need the lock held
// must wrap the call.
func (p *Postgres) GetOpenForUpdate(ctx context.Context, patronID id.PatronID, loanID id.LoanID) (*models.Loan, error) {
	row := p.q(ctx).QueryRowContext(ctx, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE id = $1 AND patron_id = $2 AND status = $3
		FOR UPDATE
	`, int64(loanID), patronID.String(), string(models.StatusIssued))

	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get open loan: %w", err)
	}
	return loan, nil
}

// Update implements LoanStore.
func (p *Postgres) Update(ctx context.Context, loan *models.Loan) error {
	res, err := p.q(ctx).ExecContext(ctx, `
		UPDATE loans
		SET due_date = $2, renewal_count = $3, status = $4,
			fine_amount = $5, return_date = $6
		WHERE id = $1
	`,
		int64(loan.ID),
		loan.DueDate,
		loan.RenewalCount,
		string(loan.Status),
		loan.FineAmount,
		loan.ReturnDate,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListOpen implements LoanStore.
func (p *Postgres) ListOpen(ctx context.Context, patronID id.PatronID) ([]*models.Loan, error) {
	return p.ListByStatuses(ctx, patronID, models.StatusIssued)
}

// ListByStatuses implements LoanStore.
func (p *Postgres) ListByStatuses(ctx context.Context, patronID id.PatronID, statuses ...models.Status) ([]*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE patron_id = $1`
	args := []any{patronID.String()}

	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, s := range statuses {
			raw[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(raw))
	}
	query += ` ORDER BY id`

	rows, err := p.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var result []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		result = append(result, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var (
		loan       models.Loan
		rawPatron  string
		rawStatus  string
		returnDate sql.NullTime
	)

	err := row.Scan(
		&loan.ID,
		&rawPatron,
		&loan.Item.ItemID,
		&loan.Item.Title,
		&loan.Item.Author,
		&loan.IssueDate,
		&loan.DueDate,
		&loan.RenewalCount,
		&rawStatus,
		&loan.FineAmount,
		&returnDate,
	)
	if err != nil {
		return nil, err
	}

	patronID, err := id.ParsePatronID(rawPatron)
	if err != nil {
		return nil, fmt.Errorf("stored patron id: %w", err)
	}
	loan.PatronID = patronID

	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	loan.Status = status

	if returnDate.Valid {
		t := returnDate.Time
		loan.ReturnDate = &t
	}

	// Dates come back in the session time zone; normalize to date-only UTC
	// so day arithmetic stays exact.
	loan.IssueDate = models.DateOnly(loan.IssueDate)
	loan.DueDate = models.DateOnly(loan.DueDate)
	if loan.ReturnDate != nil {
		d := models.DateOnly(*loan.ReturnDate)
		loan.ReturnDate = &d
	}

	return &loan, nil
}
