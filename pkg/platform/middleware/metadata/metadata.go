// Package metadata extracts client metadata (IP, parsed user agent) into the
// request context for logging and notification auditing.
package metadata

import (
	"context"
	"net/http"
	"strings"

	ua "github.com/mssola/useragent"
)

// Client describes the calling client as derived from request headers.
type Client struct {
	IP       string
	Browser  string
	OS       string
	Mobile   bool
	Bot      bool
	RawAgent string
}

type contextKeyClient struct{}

// ClientMetadata extracts the client IP address and parses the User-Agent
// header into the context. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		parsed := ua.New(raw)
		browser, version := parsed.Browser()

		client := Client{
			IP:       ClientIPFromRequest(r),
			Browser:  strings.TrimSpace(browser + " " + version),
			OS:       parsed.OS(),
			Mobile:   parsed.Mobile(),
			Bot:      parsed.Bot(),
			RawAgent: raw,
		}

		ctx := context.WithValue(r.Context(), contextKeyClient{}, client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClient retrieves the client metadata from the context.
func GetClient(ctx context.Context) Client {
	if c, ok := ctx.Value(contextKeyClient{}).(Client); ok {
		return c
	}
	return Client{}
}

// WithClient injects client metadata into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, contextKeyClient{}, client)
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// Check X-Forwarded-For header first (standard for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
		// Take the first IP which is the original client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header (used by nginx and other proxies)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr (direct connection)
	// RemoteAddr is in format "ip:port", so we need to strip the port
	if addr := r.RemoteAddr; addr != "" {
		// For IPv6, format is [::1]:port
		// For IPv4, format is 127.0.0.1:port
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
