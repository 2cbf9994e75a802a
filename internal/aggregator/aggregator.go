// Package aggregator fans one artist query out across every configured
// concert source and merges the answers into a single deduplicated list.
package aggregator

import (
	"context"
	"time"

	"example.com/concertbot/internal/cache"
	"example.com/concertbot/internal/metrics"
	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/sources"

	"github.com/rs/zerolog/log"
)

// Merge policies. merge_all consults every source and merges; first_hit stops
// at the first source that yields anything.
const (
	PolicyMergeAll = "merge_all"
	PolicyFirstHit = "first_hit"
)

// Aggregator queries sources in priority order. A failing source is isolated:
// it is logged and counted, never allowed to sink the whole search.
type Aggregator struct {
	sources          []sources.Source
	cache            *cache.SearchCache
	collector        *metrics.Collector
	policy           string
	perSourceTimeout time.Duration
	now              func() time.Time
}

// Option customizes an Aggregator
type Option func(*Aggregator)

// WithCache attaches a search result cache
func WithCache(c *cache.SearchCache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithMetrics attaches a metrics collector
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Aggregator) { a.collector = c }
}

// WithPolicy selects the merge policy; unknown values fall back to merge_all
func WithPolicy(policy string) Option {
	return func(a *Aggregator) {
		if policy == PolicyFirstHit {
			a.policy = PolicyFirstHit
		}
	}
}

// WithPerSourceTimeout bounds how long any single source may run
func WithPerSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.perSourceTimeout = d
		}
	}
}

// WithClock overrides the clock used for the future-date filter
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an aggregator over the given sources. Order matters: earlier
// sources win dedup conflicts and satisfy the first_hit policy first.
func New(srcs []sources.Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:          srcs,
		policy:           PolicyMergeAll,
		perSourceTimeout: 30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search returns every known future Italian concert for the artist,
// deduplicated by event id with first-seen-wins semantics. Only the Italian
// market is served; any other country code resolves to an empty result.
func (a *Aggregator) Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error) {
	if !sources.IsItalyCode(countryCode) {
		log.Debug().Str("country", countryCode).Msg("Search outside the Italian market, returning empty")
		return nil, nil
	}

	a.collector.IncCounter("aggregator.searches")

	if cached, err := a.cache.GetSearch(ctx, artist, countryCode); err == nil {
		a.collector.IncCounter("aggregator.cache_hits")
		log.Debug().Str("artist", artist).Int("concerts", len(cached)).Msg("Search served from cache")
		return cached, nil
	}

	merged := make([]models.ConcertEvent, 0)
	seen := make(map[string]bool)
	now := a.now()

	for _, source := range a.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := a.searchSource(ctx, source, artist, countryCode)
		if err != nil {
			a.collector.IncCounter("aggregator.source_errors." + source.Name())
			log.Warn().Err(err).
				Str("source", source.Name()).
				Str("artist", artist).
				Msg("Concert source failed, continuing with remaining sources")
			continue
		}

		added := 0
		for _, concert := range found {
			if !concert.Eligible(now) || seen[concert.ID] {
				continue
			}
			seen[concert.ID] = true
			merged = append(merged, concert)
			added++
		}

		if added > 0 && a.policy == PolicyFirstHit {
			break
		}
	}

	if err := a.cache.SetSearch(ctx, artist, countryCode, merged); err != nil {
		log.Warn().Err(err).Str("artist", artist).Msg("Failed to cache search results")
	}

	log.Info().
		Str("artist", artist).
		Int("concerts", len(merged)).
		Msg("Aggregated concert search complete")
	return merged, nil
}

func (a *Aggregator) searchSource(ctx context.Context, source sources.Source, artist, countryCode string) ([]models.ConcertEvent, error) {
	sourceCtx, cancel := context.WithTimeout(ctx, a.perSourceTimeout)
	defer cancel()

	start := time.Now()
	found, err := source.Search(sourceCtx, artist, countryCode)
	a.collector.ObserveDuration("source."+source.Name(), time.Since(start))
	return found, err
}
