// Package enrich fans a Media Record out to zero or more external metadata
// providers (OMDb, TMDB, TVDB) concurrently, caching both hits and misses,
// and unifies their ratings into a single 0-10 scale map.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"jellydiscord/internal/logging"
	"jellydiscord/internal/model"
)

// Provider is a single external metadata source. Implementations must not
// return an error for "not found" — they report that by returning a nil
// result and a nil error, which the enricher treats as a negative cache hit.
type Provider interface {
	// Name is the stable provider identifier ("omdb", "tmdb", "tvdb") used
	// as a cache-key prefix and as a Bundle field selector.
	Name() string
	// Lookup resolves metadata for record, or (nil, nil) on a clean miss.
	Lookup(ctx context.Context, record *model.Record) (*model.ProviderResult, error)
}

// Cache is the subset of the item store the enricher needs for rating
// lookups, narrowed to an interface so tests can supply an in-memory fake
// instead of a real SQLite-backed store.Store.
type Cache interface {
	GetCached(ctx context.Context, key string) (payload string, hit bool, err error)
	PutCached(ctx context.Context, key, provider, payload string, expiresAt time.Time) error
}

// defaultConcurrency bounds how many providers run in parallel per record.
const defaultConcurrency = 3

// defaultTTL is how long a provider result (positive or negative) stays cached.
const defaultTTL = 168 * time.Hour

// Enricher fans a record out to its configured providers.
type Enricher struct {
	providers   []Provider
	cache       Cache
	ttl         time.Duration
	concurrency int
	logger      *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithTTL overrides the default 168h cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(e *Enricher) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithConcurrency overrides the default in-flight provider cap.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger attaches a structured logger for per-provider outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an Enricher over the given providers (nil entries are skipped)
// and cache store.
func New(cache Cache, providers []Provider, opts ...Option) *Enricher {
	filtered := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	e := &Enricher{
		providers:   filtered,
		cache:       cache,
		ttl:         defaultTTL,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich fans the record out to every configured provider and returns a
// unified Bundle. Enrich never fails the pipeline: a provider error or
// timeout is logged and that provider's slot is simply left empty.
func (e *Enricher) Enrich(ctx context.Context, record *model.Record) model.Bundle {
	bundle := model.Bundle{}
	if e == nil || record == nil || len(e.providers) == 0 {
		return bundle
	}

	results := make([]*model.ProviderResult, len(e.providers))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i, provider := range e.providers {
		i, provider := i, provider
		group.Go(func() error {
			result, err := e.lookupCached(groupCtx, provider, record)
			if err != nil {
				e.logger.WarnContext(groupCtx, "enrichment provider failed",
					logging.FieldProvider, provider.Name(),
					logging.FieldItemID, record.ID,
					"error", err)
				return nil // swallowed: enrichment must never fail the pipeline
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait() // no member returns a non-nil error; Wait only waits out the group

	for i, provider := range e.providers {
		assignResult(&bundle, provider.Name(), results[i])
	}
	bundle.Ratings = unifyRatings(bundle)
	return bundle
}

func assignResult(bundle *model.Bundle, name string, result *model.ProviderResult) {
	switch name {
	case "omdb":
		bundle.OMDB = result
	case "tmdb":
		bundle.TMDB = result
	case "tvdb":
		bundle.TVDB = result
	}
}

// lookupCached checks the rating cache before calling the provider,
// caching both hits and clean misses so a record with no match doesn't
// hammer the provider on every subsequent sighting.
func (e *Enricher) lookupCached(ctx context.Context, provider Provider, record *model.Record) (*model.ProviderResult, error) {
	key := cacheKey(provider.Name(), record)

	if payload, hit, err := e.cache.GetCached(ctx, key); err == nil && hit {
		if payload == "" {
			return nil, nil // cached negative result
		}
		var result model.ProviderResult
		if err := json.Unmarshal([]byte(payload), &result); err == nil {
			return &result, nil
		}
	}

	result, err := provider.Lookup(ctx, record)
	if err != nil {
		return nil, err
	}

	var payload string
	if result != nil {
		encoded, marshalErr := json.Marshal(result)
		if marshalErr == nil {
			payload = string(encoded)
		}
	}
	_ = e.cache.PutCached(ctx, key, provider.Name(), payload, time.Now().Add(e.ttl))

	return result, nil
}

// cacheKey builds the provider-specific lookup key per spec.md §4.D:
// provider:id:<id> when available, falling back to
// provider:name:<kind>:<name>:<year>.
func cacheKey(provider string, record *model.Record) string {
	switch provider {
	case "tmdb":
		if record.Providers.TMDB != "" {
			return fmt.Sprintf("tmdb:id:%s", record.Providers.TMDB)
		}
	case "tvdb":
		if record.Providers.TVDB != "" {
			return fmt.Sprintf("tvdb:id:%s", record.Providers.TVDB)
		}
	case "omdb":
		if record.Providers.IMDB != "" {
			return fmt.Sprintf("omdb:id:%s", record.Providers.IMDB)
		}
	}
	return fmt.Sprintf("%s:name:%s:%s:%d", provider, record.Kind, record.Name, record.Year)
}
