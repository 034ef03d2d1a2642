// Package handler exposes catalog search over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"libripal/internal/catalog/models"
	"libripal/pkg/platform/httputil"
)

const (
	defaultLimit = 10
	maxLimit     = 40
)

// Searcher is the aggregator surface the handler needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []models.Item
}

// Handler handles catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	catalog Searcher
}

// New creates a new catalog Handler.
func New(catalog Searcher, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, catalog: catalog}
}

// Register registers the catalog routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/books/search", h.handleSearch)
}

// SearchResponse is the JSON payload for GET /api/books/search.
type SearchResponse struct {
	Query   string        `json:"query"`
	Results []models.Item `json:"results"`
	Count   int           `json:"count"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")

	limit := defaultLimit
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		// Malformed or oversized limits degrade to the default rather
		// than erroring; search is deliberately lenient.
		if err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}

	results := h.catalog.Search(ctx, query, limit)

	httputil.WriteJSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Results: results,
		Count:   len(results),
	})
}
