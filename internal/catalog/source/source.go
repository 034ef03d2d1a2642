// Package source contains the external catalog clients the aggregator fans
// out to. Each client owns its HTTP plumbing and JSON parsing; the service
// layer owns merging, caching, and failure absorption.
package source

import (
	"context"

	"libripal/internal/catalog/models"
)

//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks

// Source is one external book catalog. Implementations must honor the
// context deadline and return at most limit items.
type Source interface {
	Name() models.Source
	Search(ctx context.Context, query string, limit int) ([]models.Item, error)
}
