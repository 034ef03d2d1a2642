package auth

import (
	"context"
	"log/slog"
	"time"

	patronmodels "libripal/internal/patron/models"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/requestcontext"
)

// PatronEnsurer creates or fetches the patron for a verified email.
type PatronEnsurer interface {
	EnsurePatron(ctx context.Context, email string) (*patronmodels.Patron, error)
}

// Session is an issued local token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	PatronID  string    `json:"patron_id"`
}

// Service exchanges provider credentials for sessions.
type Service struct {
	provider IdentityProvider
	tokens   *JWTManager
	patrons  PatronEnsurer
	logger   *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds the auth service.
func NewService(provider IdentityProvider, tokens *JWTManager, patrons PatronEnsurer, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		tokens:   tokens,
		patrons:  patrons,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange verifies the upstream credential, ensures the patron account
// exists, and issues a session token. A deactivated account cannot sign in.
func (s *Service) Exchange(ctx context.Context, credential string) (Session, error) {
	identity, err := s.provider.Verify(ctx, credential)
	if err != nil {
		return Session{}, err
	}

	patron, err := s.patrons.EnsurePatron(ctx, identity.Email)
	if err != nil {
		return Session{}, err
	}
	if !patron.Active {
		return Session{}, dErrors.New(dErrors.CodeForbidden, "account is deactivated")
	}

	token, expiresAt, err := s.tokens.IssueToken(patron.ID, patron.Email)
	if err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.logger.InfoContext(ctx, "session issued",
		"request_id", requestcontext.RequestID(ctx),
		"patron_id", patron.ID)
	return Session{Token: token, ExpiresAt: expiresAt, PatronID: patron.ID.String()}, nil
}
