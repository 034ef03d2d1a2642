// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// This package defines context keys and getter/setter functions for values
// that are typically set by middleware but consumed by services. By keeping
// this package free of net/http dependencies, services can import only what
// they need without pulling in HTTP-related code.
//
// Usage in services (read values):
//
//	patronID := requestcontext.PatronID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedDate)
//	ctx = requestcontext.WithPatronID(ctx, patronID)
package requestcontext

import (
	"context"
	"time"

	id "libripal/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	patronIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyPatronID    = patronIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// PatronID retrieves the authenticated patron ID from the context.
// Returns the zero value (nil UUID) if not set.
func PatronID(ctx context.Context) id.PatronID {
	if patronID, ok := ctx.Value(ContextKeyPatronID).(id.PatronID); ok {
		return patronID
	}
	return id.PatronID{}
}

// WithPatronID injects a patron ID into the context.
func WithPatronID(ctx context.Context, patronID id.PatronID) context.Context {
	return context.WithValue(ctx, ContextKeyPatronID, patronID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. All due-date and fine
// derivations go through this accessor so an entire request observes one
// consistent "today". Falls back to time.Now() for non-HTTP contexts
// (workers, CLI, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - The reminder worker, which needs a consistent date across one sweep
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
