package auth

import (
	"context"
	"strings"

	dErrors "libripal/pkg/domain-errors"
)

// Identity is what the upstream provider asserts about the caller.
type Identity struct {
	Subject string
	Email   string
}

// IdentityProvider verifies an upstream credential. The deployment wires a
// real provider; development and tests use the mock.
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// MockIdentityProvider accepts tokens of the form "email:<address>" and
// asserts that address. It stands in for a real provider in development.
type MockIdentityProvider struct{}

// NewMockIdentityProvider creates the development provider.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{}
}

// Verify implements IdentityProvider.
func (*MockIdentityProvider) Verify(_ context.Context, token string) (Identity, error) {
	email, ok := strings.CutPrefix(token, "email:")
	if !ok || !strings.Contains(email, "@") {
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "unrecognized credential")
	}
	return Identity{Subject: email, Email: email}, nil
}
