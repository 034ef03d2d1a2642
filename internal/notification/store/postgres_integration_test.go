//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"libripal/internal/notification/models"
	id "libripal/pkg/domain"
	"libripal/pkg/platform/sentinel"
	"libripal/pkg/testutil/containers"
)

const notificationsSchema = `
CREATE TABLE IF NOT EXISTS notifications (
	id         BIGSERIAL   PRIMARY KEY,
	patron_id  UUID        NOT NULL,
	title      TEXT        NOT NULL,
	message    TEXT        NOT NULL,
	read       BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_patron ON notifications (patron_id, id DESC);

CREATE TABLE IF NOT EXISTS telegram_link_codes (
	patron_id  UUID        PRIMARY KEY,
	code_hash  BYTEA       NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	used       BOOLEAN     NOT NULL DEFAULT FALSE
);
`

type PostgresNotificationStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
}

func TestPostgresNotificationStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresNotificationStoreSuite))
}

func (s *PostgresNotificationStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.pg.Exec(s.T(), notificationsSchema)
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresNotificationStoreSuite) SetupTest() {
	s.pg.Exec(s.T(), "TRUNCATE notifications RESTART IDENTITY")
	s.pg.Exec(s.T(), "TRUNCATE telegram_link_codes")
}

func (s *PostgresNotificationStoreSuite) notify(patronID id.PatronID, title string) *models.Notification {
	n := &models.Notification{PatronID: patronID, Title: title, Message: "body"}
	s.Require().NoError(s.store.Create(context.Background(), n))
	return n
}

// =============================================================================
// Notifications
// =============================================================================

func (s *PostgresNotificationStoreSuite) TestListNewestFirst() {
	ctx := context.Background()
	patronID := id.NewPatronID()
	first := s.notify(patronID, "first")
	second := s.notify(patronID, "second")
	s.notify(id.NewPatronID(), "someone else's")

	got, err := s.store.ListByPatron(ctx, patronID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(second.ID, got[0].ID)
	s.Equal(first.ID, got[1].ID)
	s.False(got[0].Read)
	s.False(got[0].CreatedAt.IsZero())
}

func (s *PostgresNotificationStoreSuite) TestMarkReadIsPatronScoped() {
	ctx := context.Background()
	patronID := id.NewPatronID()
	n := s.notify(patronID, "overdue")

	s.Require().ErrorIs(s.store.MarkRead(ctx, id.NewPatronID(), n.ID), sentinel.ErrNotFound)

	s.Require().NoError(s.store.MarkRead(ctx, patronID, n.ID))
	got, err := s.store.ListByPatron(ctx, patronID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.True(got[0].Read)
}

// =============================================================================
// Link codes
// =============================================================================

func (s *PostgresNotificationStoreSuite) TestSaveLinkCodeReplacesPending() {
	ctx := context.Background()
	patronID := id.NewPatronID()
	expires := time.Now().Add(10 * time.Minute).UTC()

	s.Require().NoError(s.store.SaveLinkCode(ctx, &LinkCode{
		PatronID: patronID, CodeHash: []byte("hash-1"), ExpiresAt: expires,
	}))
	s.Require().NoError(s.store.SaveLinkCode(ctx, &LinkCode{
		PatronID: patronID, CodeHash: []byte("hash-2"), ExpiresAt: expires,
	}))

	pending, err := s.store.ListPendingLinkCodes(ctx, time.Now())
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal([]byte("hash-2"), pending[0].CodeHash)
}

func (s *PostgresNotificationStoreSuite) TestListPendingSkipsExpiredAndUsed() {
	ctx := context.Background()
	now := time.Now().UTC()

	live := id.NewPatronID()
	s.Require().NoError(s.store.SaveLinkCode(ctx, &LinkCode{
		PatronID: live, CodeHash: []byte("live"), ExpiresAt: now.Add(10 * time.Minute),
	}))
	s.Require().NoError(s.store.SaveLinkCode(ctx, &LinkCode{
		PatronID: id.NewPatronID(), CodeHash: []byte("expired"), ExpiresAt: now.Add(-time.Minute),
	}))
	burned := id.NewPatronID()
	s.Require().NoError(s.store.SaveLinkCode(ctx, &LinkCode{
		PatronID: burned, CodeHash: []byte("burned"), ExpiresAt: now.Add(10 * time.Minute),
	}))
	s.Require().NoError(s.store.MarkLinkCodeUsed(ctx, burned))

	pending, err := s.store.ListPendingLinkCodes(ctx, now)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(live, pending[0].PatronID)
}

func (s *PostgresNotificationStoreSuite) TestMarkLinkCodeUsedBurnsOnce() {
	ctx := context.Background()
	patronID := id.NewPatronID()
	s.Require().NoError(s.store.SaveLinkCode(ctx, &LinkCode{
		PatronID: patronID, CodeHash: []byte("hash"), ExpiresAt: time.Now().Add(10 * time.Minute),
	}))

	s.Require().NoError(s.store.MarkLinkCodeUsed(ctx, patronID))
	s.Require().ErrorIs(s.store.MarkLinkCodeUsed(ctx, patronID), sentinel.ErrAlreadyUsed)
	s.Require().ErrorIs(s.store.MarkLinkCodeUsed(ctx, id.NewPatronID()), sentinel.ErrNotFound)
}
