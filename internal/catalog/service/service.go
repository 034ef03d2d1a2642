// Package service implements the catalog search aggregator: two-source
// fan-out, per-source caching and circuit breaking, merge, dedup, truncate.
// Search never returns an error; upstream trouble only shrinks the result.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"libripal/internal/catalog/cache"
	"libripal/internal/catalog/metrics"
	"libripal/internal/catalog/models"
	"libripal/internal/catalog/source"
	"libripal/pkg/platform/circuit"
	platformstrings "libripal/pkg/platform/strings"
)

const (
	minQueryLength = 2

	// While a source's circuit is open, calls still go out as probes but
	// with a short deadline so a dead upstream cannot cost the full source
	// timeout on every search.
	probeTimeout = 2 * time.Second
)

// Service aggregates search results from two external catalogs. The
// technical source is prioritized for programming/CS queries.
type Service struct {
	technical source.Source
	general   source.Source
	cache     cache.Cache
	breakers  map[models.Source]*circuit.Breaker
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the catalog metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCache sets the per-source result cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// New builds the aggregator over a technical and a general source.
func New(technical, general source.Source, opts ...Option) *Service {
	s := &Service{
		technical: technical,
		general:   general,
		cache:     cache.NewMemory(30 * time.Minute),
		logger:    slog.Default(),
		tracer:    otel.Tracer("libripal/catalog"),
		breakers: map[models.Source]*circuit.Breaker{
			technical.Name(): circuit.New(string(technical.Name())),
			general.Name():   circuit.New(string(general.Name())),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to limit deduplicated items for the query. A trimmed
// query shorter than two characters or a non-positive limit yields an empty
// result, not an error.
func (s *Service) Search(ctx context.Context, query string, limit int) []models.Item {
	ctx, span := s.tracer.Start(ctx, "catalog.search",
		trace.WithAttributes(
			attribute.String("catalog.query", query),
			attribute.Int("catalog.limit", limit),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveSearchLatency(time.Since(start)) }()
	s.metrics.IncrementSearches()

	query = strings.TrimSpace(query)
	if len(query) < minQueryLength || limit <= 0 {
		return []models.Item{}
	}

	primary, secondary := s.general, s.technical
	if isTechnical(query) {
		primary, secondary = s.technical, s.general
	}
	span.SetAttributes(attribute.String("catalog.primary", string(primary.Name())))

	// The prioritized source gets the larger half so its candidates
	// dominate before dedup trims the list.
	primaryLimit := limit/2 + 2
	secondaryLimit := limit / 2

	var primaryItems, secondaryItems []models.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primaryItems = s.fetch(gctx, primary, query, primaryLimit)
		return nil
	})
	g.Go(func() error {
		secondaryItems = s.fetch(gctx, secondary, query, secondaryLimit)
		return nil
	})
	_ = g.Wait()

	combined := make([]models.Item, 0, len(primaryItems)+len(secondaryItems))
	combined = append(combined, primaryItems...)
	combined = append(combined, secondaryItems...)

	merged := dedupe(combined)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	span.SetAttributes(attribute.Int("catalog.results", len(merged)))
	return merged
}

// fetch resolves one source call through cache and circuit breaker. Failures
// are absorbed: the result is simply empty.
func (s *Service) fetch(ctx context.Context, src source.Source, query string, limit int) []models.Item {
	key := cache.Key(src.Name(), query, limit)

	if items, ok := s.cache.Get(ctx, key); ok {
		s.metrics.IncrementCacheLookup("hit")
		return items
	}
	s.metrics.IncrementCacheLookup("miss")

	breaker := s.breakers[src.Name()]
	callCtx := ctx
	if breaker.IsOpen() {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	items, err := src.Search(callCtx, query, limit)
	if err != nil {
		_, change := breaker.RecordFailure()
		if change.Opened {
			s.logger.ErrorContext(ctx, "catalog source circuit opened",
				"source", src.Name(),
			)
		}
		s.metrics.IncrementSourceRequest(string(src.Name()), "error")
		s.logger.WarnContext(ctx, "catalog source failed",
			"source", src.Name(),
			"query", query,
			"error", err,
		)
		return nil
	}

	_, change := breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "catalog source circuit closed",
			"source", src.Name(),
		)
	}
	s.metrics.IncrementSourceRequest(string(src.Name()), "ok")

	if err := s.cache.Put(ctx, key, items); err != nil {
		s.logger.WarnContext(ctx, "catalog cache write failed",
			"source", src.Name(),
			"error", err,
		)
	}
	return items
}

// dedupe removes items whose normalized titles collide; the first occurrence
// wins, so source-priority ordering decides which metadata survives.
func dedupe(items []models.Item) []models.Item {
	seen := make(map[string]struct{}, len(items))
	result := make([]models.Item, 0, len(items))
	for _, item := range items {
		key := platformstrings.NormalizeTitle(item.Title)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}
