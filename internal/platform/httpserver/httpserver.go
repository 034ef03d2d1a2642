// Package httpserver builds the process HTTP server. Per-request deadlines
// come from the middleware chain, so only connection-level timeouts live here.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server around the router.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
