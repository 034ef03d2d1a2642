package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"libripal/internal/patron/models"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/sentinel"
)

// Postgres persists patrons in PostgreSQL. Reminder days live in an int
// array column; the rest of the preferences are plain columns.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed patron store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const patronColumns = `id, email, first_name, last_name, telegram_chat_id,
	email_reminders, telegram_reminders, reminder_days, active, created_at, updated_at`

// Create implements PatronStore.
func (p *Postgres) Create(ctx context.Context, patron *models.Patron) error {
	patron.Email = strings.ToLower(patron.Email)
	now := time.Now().UTC()
	patron.CreatedAt = now
	patron.UpdatedAt = now

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO patrons (`+patronColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		patron.ID.String(),
		patron.Email,
		patron.FirstName,
		patron.LastName,
		patron.TelegramChatID,
		patron.Preferences.EmailReminders,
		patron.Preferences.TelegramReminders,
		pq.Array(patron.Preferences.ReminderDays),
		patron.Active,
		patron.CreatedAt,
		patron.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert patron: %w", err)
	}
	return nil
}

// GetByID implements PatronStore.
func (p *Postgres) GetByID(ctx context.Context, patronID id.PatronID) (*models.Patron, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+patronColumns+` FROM patrons WHERE id = $1
	`, patronID.String())
	return scanPatron(row)
}

// GetByEmail implements PatronStore.
func (p *Postgres) GetByEmail(ctx context.Context, email string) (*models.Patron, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+patronColumns+` FROM patrons WHERE email = $1
	`, strings.ToLower(email))
	return scanPatron(row)
}

// GetByTelegramChatID implements PatronStore.
func (p *Postgres) GetByTelegramChatID(ctx context.Context, chatID int64) (*models.Patron, error) {
	if chatID == 0 {
		return nil, sentinel.ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT `+patronColumns+` FROM patrons WHERE telegram_chat_id = $1
	`, chatID)
	return scanPatron(row)
}

// Update implements PatronStore.
func (p *Postgres) Update(ctx context.Context, patron *models.Patron) error {
	patron.Email = strings.ToLower(patron.Email)
	patron.UpdatedAt = time.Now().UTC()

	result, err := p.db.ExecContext(ctx, `
		UPDATE patrons SET
			email = $2,
			first_name = $3,
			last_name = $4,
			telegram_chat_id = $5,
			email_reminders = $6,
			telegram_reminders = $7,
			reminder_days = $8,
			active = $9,
			updated_at = $10
		WHERE id = $1
	`,
		patron.ID.String(),
		patron.Email,
		patron.FirstName,
		patron.LastName,
		patron.TelegramChatID,
		patron.Preferences.EmailReminders,
		patron.Preferences.TelegramReminders,
		pq.Array(patron.Preferences.ReminderDays),
		patron.Active,
		patron.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update patron: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update patron rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListActive implements PatronStore.
func (p *Postgres) ListActive(ctx context.Context) ([]*models.Patron, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+patronColumns+` FROM patrons WHERE active ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("list active patrons: %w", err)
	}
	defer rows.Close()

	var result []*models.Patron
	for rows.Next() {
		patron, err := scanPatron(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, patron)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patrons: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatron(row rowScanner) (*models.Patron, error) {
	var (
		patron   models.Patron
		rawID    string
		chatID   sql.NullInt64
		reminder pq.Int64Array
	)
	err := row.Scan(
		&rawID,
		&patron.Email,
		&patron.FirstName,
		&patron.LastName,
		&chatID,
		&patron.Preferences.EmailReminders,
		&patron.Preferences.TelegramReminders,
		&reminder,
		&patron.Active,
		&patron.CreatedAt,
		&patron.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patron: %w", err)
	}

	patron.ID, err = id.ParsePatronID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse patron id: %w", err)
	}
	patron.TelegramChatID = chatID.Int64
	patron.Preferences.ReminderDays = make([]int, 0, len(reminder))
	for _, day := range reminder {
		patron.Preferences.ReminderDays = append(patron.Preferences.ReminderDays, int(day))
	}
	return &patron, nil
}
