// Package cache stores per-source search results for a bounded time so
// repeated searches skip the network entirely.
package cache

import (
	"context"
	"fmt"
	"strings"

	"libripal/internal/catalog/models"
)

// Cache is the per-source result cache. Get returns ok=false on miss or
// expiry; implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.Item, bool)
	Put(ctx context.Context, key string, items []models.Item) error
}

// Key builds the cache key for one source call. The query is lowercased so
// "Python" and "python" share an entry; the limit is part of the key because
// it changes what the upstream returns.
func Key(source models.Source, query string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", source, strings.ToLower(query), limit)
}
