// Package auth exchanges an identity provider's token for a local session
// JWT and creates the patron account on first sight.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"libripal/internal/platform/middleware"
	id "libripal/pkg/domain"
)

const (
	issuer   = "libripal"
	tokenTTL = 24 * time.Hour
)

// sessionClaims is the local JWT payload. The subject is the patron ID.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWTManager issues and validates HS256 session tokens. It implements
// middleware.JWTValidator.
type JWTManager struct {
	signingKey []byte
	now        func() time.Time
}

// NewJWTManager creates a token manager for the signing key.
func NewJWTManager(signingKey string) *JWTManager {
	return &JWTManager{signingKey: []byte(signingKey), now: time.Now}
}

// IssueToken mints a session token for the patron.
func (m *JWTManager) IssueToken(patronID id.PatronID, email string) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(tokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   patronID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	})

	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken implements middleware.JWTValidator.
func (m *JWTManager) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	return &middleware.JWTClaims{
		PatronID: claims.Subject,
		Email:    claims.Email,
	}, nil
}
