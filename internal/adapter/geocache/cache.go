// Package geocache memoizes successful geocoding lookups in front of any
// domain.Geocoder.
package geocache

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
)

// CachedGeocoder wraps a Geocoder with a bounded in-memory cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *ristretto.Cache
	metrics *observability.Metrics
}

// New creates a cache decorator holding at most maxEntries results.
func New(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

// ForwardGeocode serves repeated queries from the cache. Keys ignore case and
// surrounding space. Failures and empty results are never cached so they can
// be retried.
func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := cacheKey(query)
	if val, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return val.(domain.GeocodingResult), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return result, err
	}
	c.cache.Set(key, result, 1)
	c.cache.Wait()
	return result, nil
}

// Close stops the cache's background goroutines.
func (c *CachedGeocoder) Close() {
	c.cache.Close()
}

func cacheKey(query string) string {
	return "fwd:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
