package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/worldnet/internal/country"
)

// ReadThrough serves the catalog from the cache and refills it from source
// on a miss. It implements country.Source.
type ReadThrough struct {
	cache  *Cache
	source country.Source
}

// NewReadThrough wraps source with cache.
func NewReadThrough(cache *Cache, source country.Source) *ReadThrough {
	return &ReadThrough{cache: cache, source: source}
}

// Countries returns the cached snapshot, loading and caching it from the
// source when absent. Backend failures fall back to the source.
func (r *ReadThrough) Countries(ctx context.Context) ([]country.Country, error) {
	p, err := r.cache.CachedData(ctx)
	if err == nil {
		return p.Countries, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		slog.Warn("offline cache unavailable, reading source", "error", err)
	}

	countries, err := r.source.Countries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source: %w", err)
	}
	if err := r.cache.CacheData(ctx, countries, 0); err != nil {
		slog.Warn("failed to refill offline cache", "error", err)
	}
	return countries, nil
}

// Cache returns the underlying cache.
func (r *ReadThrough) Cache() *Cache {
	return r.cache
}
