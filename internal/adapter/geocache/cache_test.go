package geocache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	mu     sync.Mutex
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ForwardGeocode(_ context.Context, _ string) (domain.GeocodingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

func (m *countingGeocoder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newCached(t *testing.T, inner domain.Geocoder) (*CachedGeocoder, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	c, err := New(inner, 100, m)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, m
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{Lat: 13.08, Lon: 80.27, PlaceName: "Chennai"},
	}
	cached, m := newCached(t, inner)

	r1, err := cached.ForwardGeocode(context.Background(), "coast of Chennai")
	require.NoError(t, err)
	assert.Equal(t, "Chennai", r1.PlaceName)

	r2, err := cached.ForwardGeocode(context.Background(), "coast of Chennai")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.count(), "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")), 0)
}

func TestCachedGeocoder_KeyIgnoresCaseAndSpacing(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{Lat: 10, Lon: 76}}
	cached, _ := newCached(t, inner)

	_, err := cached.ForwardGeocode(context.Background(), "Kerala coast")
	require.NoError(t, err)
	_, err = cached.ForwardGeocode(context.Background(), "  kerala   COAST ")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.count())
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{Lat: 1, Lon: 2}}
	cached, _ := newCached(t, inner)

	_, _ = cached.ForwardGeocode(context.Background(), "Chennai")
	_, _ = cached.ForwardGeocode(context.Background(), "Mumbai")

	assert.Equal(t, 2, inner.count())
}

func TestCachedGeocoder_ErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{err: domain.ErrNoGeocodeResult}
	cached, _ := newCached(t, inner)

	_, err := cached.ForwardGeocode(context.Background(), "Atlantis")
	require.ErrorIs(t, err, domain.ErrNoGeocodeResult)
	_, err = cached.ForwardGeocode(context.Background(), "Atlantis")
	require.Error(t, err)

	assert.Equal(t, 2, inner.count())
}

func TestCachedGeocoder_RetriesAfterTransientFailure(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("timeout")}
	cached, _ := newCached(t, inner)

	_, err := cached.ForwardGeocode(context.Background(), "Goa")
	require.Error(t, err)

	inner.mu.Lock()
	inner.err = nil
	inner.result = domain.GeocodingResult{Lat: 15.3, Lon: 74.1}
	inner.mu.Unlock()

	r, err := cached.ForwardGeocode(context.Background(), "Goa")
	require.NoError(t, err)
	assert.InDelta(t, 15.3, r.Lat, 1e-9)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "fwd:bay of bengal", cacheKey(" Bay  of\tBengal "))
}
