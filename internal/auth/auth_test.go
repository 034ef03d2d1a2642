package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	patronservice "libripal/internal/patron/service"
	patronstore "libripal/internal/patron/store"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/requestcontext"
	"libripal/pkg/testutil"
)

const testSigningKey = "test-signing-key-32-bytes-long!!"

func newTestService() (*Service, *patronservice.Service) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	patrons := patronservice.New(patronstore.NewMemory(), patronservice.WithLogger(logger))
	return NewService(
		NewMockIdentityProvider(),
		NewJWTManager(testSigningKey),
		patrons,
		WithLogger(logger),
	), patrons
}

// =============================================================================
// Token round trip
// =============================================================================

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager(testSigningKey)
	patronID := id.NewPatronID()

	token, expiresAt, err := manager.IssueToken(patronID, "ada@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(tokenTTL), expiresAt, time.Minute)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, patronID.String(), claims.PatronID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestJWTRejectsWrongKey(t *testing.T) {
	token, _, err := NewJWTManager(testSigningKey).IssueToken(id.NewPatronID(), "ada@example.com")
	require.NoError(t, err)

	_, err = NewJWTManager("another-key-entirely").ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	manager := NewJWTManager(testSigningKey)
	manager.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	token, _, err := manager.IssueToken(id.NewPatronID(), "ada@example.com")
	require.NoError(t, err)

	manager.now = time.Now
	_, err = manager.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsGarbage(t *testing.T) {
	_, err := NewJWTManager(testSigningKey).ValidateToken("not.a.token")
	assert.Error(t, err)
}

// =============================================================================
// Exchange
// =============================================================================

func TestExchangeCreatesPatronOnFirstSight(t *testing.T) {
	service, patrons := newTestService()

	session, err := service.Exchange(context.Background(), "email:ada.lovelace@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	patron, err := patrons.EnsurePatron(context.Background(), "ada.lovelace@example.com")
	require.NoError(t, err)
	assert.Equal(t, patron.ID.String(), session.PatronID)
	assert.Equal(t, "Ada", patron.FirstName)
}

func TestExchangeRejectsBadCredential(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Exchange(context.Background(), "email:not-an-address")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestExchangeRejectsDeactivatedAccount(t *testing.T) {
	service, patrons := newTestService()

	patron, err := patrons.EnsurePatron(context.Background(), "ada@example.com")
	require.NoError(t, err)
	ctx := requestcontext.WithPatronID(context.Background(), patron.ID)
	require.NoError(t, patrons.Deactivate(ctx))

	_, err = service.Exchange(context.Background(), "email:ada@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

// =============================================================================
// Handler
// =============================================================================

func TestHandleExchange(t *testing.T) {
	service, _ := newTestService()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(service, logger).Register(r)

	t.Run("issues a session", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/token",
			map[string]string{"credential": "email:ada@example.com"})
		rr := testutil.DoRequest(r, req)

		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[Session](t, rr)
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.PatronID)
	})

	t.Run("rejects a bad credential", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/token",
			map[string]string{"credential": "garbage"})
		rr := testutil.DoRequest(r, req)

		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("rejects an empty credential", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/token",
			map[string]string{"credential": ""})
		rr := testutil.DoRequest(r, req)

		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_input")
	})
}
