package testutil

import (
	"context"
	"net/http"
	"time"

	id "libripal/pkg/domain"
	"libripal/pkg/requestcontext"
)

// WithPatronID adds a patron ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the patronID is not a valid UUID, it will not be added to the context.
func WithPatronID(req *http.Request, patronID string) *http.Request {
	if parsed, err := id.ParsePatronID(patronID); err == nil {
		ctx := requestcontext.WithPatronID(req.Context(), parsed)
		return req.WithContext(ctx)
	}
	return req
}

// WithRequestTime pins the request-scoped clock so due date and fine
// derivations are deterministic in tests.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), now)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
