package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"libripal/internal/notification/models"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/sentinel"
)

// Postgres persists notifications and link codes in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create implements NotificationStore.
func (p *Postgres) Create(ctx context.Context, notification *models.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	err := p.db.QueryRowContext(ctx, `
		INSERT INTO notifications (patron_id, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		notification.PatronID.String(),
		notification.Title,
		notification.Message,
		notification.Read,
		notification.CreatedAt,
	).Scan(&notification.ID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByPatron implements NotificationStore.
func (p *Postgres) ListByPatron(ctx context.Context, patronID id.PatronID) ([]*models.Notification, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, patron_id, title, message, read, created_at
		FROM notifications
		WHERE patron_id = $1
		ORDER BY id DESC
	`, patronID.String())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var result []*models.Notification
	for rows.Next() {
		var (
			n     models.Notification
			rawID string
		)
		if err := rows.Scan(&n.ID, &rawID, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.PatronID, err = id.ParsePatronID(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse notification patron id: %w", err)
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, nil
}

// MarkRead implements NotificationStore.
func (p *Postgres) MarkRead(ctx context.Context, patronID id.PatronID, notificationID id.NotificationID) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND patron_id = $2
	`, int64(notificationID), patronID.String())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark read rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// SaveLinkCode implements LinkCodeStore.
func (p *Postgres) SaveLinkCode(ctx context.Context, code *LinkCode) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO telegram_link_codes (patron_id, code_hash, expires_at, used)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patron_id) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			used = EXCLUDED.used
	`, code.PatronID.String(), code.CodeHash, code.ExpiresAt, code.Used)
	if err != nil {
		return fmt.Errorf("save link code: %w", err)
	}
	return nil
}

// ListPendingLinkCodes implements LinkCodeStore.
func (p *Postgres) ListPendingLinkCodes(ctx context.Context, now time.Time) ([]*LinkCode, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT patron_id, code_hash, expires_at, used
		FROM telegram_link_codes
		WHERE NOT used AND expires_at > $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list link codes: %w", err)
	}
	defer rows.Close()

	var result []*LinkCode
	for rows.Next() {
		var (
			code  LinkCode
			rawID string
		)
		if err := rows.Scan(&rawID, &code.CodeHash, &code.ExpiresAt, &code.Used); err != nil {
			return nil, fmt.Errorf("scan link code: %w", err)
		}
		code.PatronID, err = id.ParsePatronID(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse link code patron id: %w", err)
		}
		result = append(result, &code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link codes: %w", err)
	}
	return result, nil
}

// MarkLinkCodeUsed implements LinkCodeStore.
func (p *Postgres) MarkLinkCodeUsed(ctx context.Context, patronID id.PatronID) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE telegram_link_codes SET used = TRUE
		WHERE patron_id = $1 AND NOT used
	`, patronID.String())
	if err != nil {
		return fmt.Errorf("mark link code used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark used rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM telegram_link_codes WHERE patron_id = $1)`,
			patronID.String()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check link code: %w", err)
		}
		if exists {
			return sentinel.ErrAlreadyUsed
		}
		return sentinel.ErrNotFound
	}
	return nil
}
