// Package session remembers the last resolved query context per conversation
// so follow-up turns can reuse fetched results.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
)

// DefaultID is the session used when a caller supplies none.
const DefaultID = "default"

// Bundle is the resolved context of one turn and the data fetched for it.
type Bundle struct {
	Window    domain.TimeWindow
	Point     domain.GeoPoint
	SensorIDs []string
	Profiles  []domain.ProfileRecord
	Stats     []domain.MeasurementStats
}

// Matches reports whether the bundle was stored for exactly this window and
// point. All four of latitude, longitude, window start and window end must be
// equal.
func (b *Bundle) Matches(window domain.TimeWindow, point domain.GeoPoint) bool {
	return b.Point.Lat == point.Lat &&
		b.Point.Lon == point.Lon &&
		b.Window.Start.Equal(window.Start) &&
		b.Window.End.Equal(window.End)
}

// FillFunc computes a fresh bundle on a cache miss.
type FillFunc func(ctx context.Context) (Bundle, error)

// Config sizes the cache. A zero IdleTTL keeps sessions forever and a zero
// Capacity leaves the session count unbounded. When Capacity is reached the
// least recently used session is dropped; a session evicted in the middle of
// a fill is reinstated once the fill completes.
type Config struct {
	IdleTTL  time.Duration
	Capacity uint64
}

type slot struct {
	mu     sync.Mutex
	bundle *Bundle
}

// Cache holds one slot per session id. Each slot has its own lock, so
// lookup, fill and store for one session are a single critical section while
// different sessions proceed independently.
type Cache struct {
	mu    sync.Mutex
	slots *ttlcache.Cache[string, *slot]
}

// New creates a session cache. Call Start to begin expiring idle sessions.
func New(cfg Config) *Cache {
	opts := []ttlcache.Option[string, *slot]{
		ttlcache.WithTTL[string, *slot](cfg.IdleTTL),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *slot](cfg.Capacity))
	}
	return &Cache{slots: ttlcache.New(opts...)}
}

// Start runs the expiry loop in the background until Stop is called.
func (c *Cache) Start() {
	go c.slots.Start()
}

// Stop halts the expiry loop.
func (c *Cache) Stop() {
	c.slots.Stop()
}

// Len returns the number of live sessions.
func (c *Cache) Len() int {
	return c.slots.Len()
}

func (c *Cache) slotFor(id string) *slot {
	id = normalizeID(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if item := c.slots.Get(id); item != nil {
		return item.Value()
	}
	s := &slot{}
	c.slots.Set(id, s, ttlcache.DefaultTTL)
	return s
}

// keep reinstates s as the slot for id. A slot can be evicted by capacity or
// idle expiry while a turn holds its lock; the filled slot wins.
func (c *Cache) keep(id string, s *slot) {
	id = normalizeID(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if item := c.slots.Get(id); item != nil && item.Value() == s {
		return
	}
	c.slots.Set(id, s, ttlcache.DefaultTTL)
}

func normalizeID(id string) string {
	if id == "" {
		return DefaultID
	}
	return id
}

// Lookup returns the session's bundle when it was stored for the same window
// and point.
func (c *Cache) Lookup(id string, window domain.TimeWindow, point domain.GeoPoint) (Bundle, bool) {
	s := c.slotFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle == nil || !s.bundle.Matches(window, point) {
		return Bundle{}, false
	}
	return *s.bundle, true
}

// Last returns the most recently stored bundle of the session, if any.
func (c *Cache) Last(id string) (Bundle, bool) {
	s := c.slotFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle == nil {
		return Bundle{}, false
	}
	return *s.bundle, true
}

// Store overwrites the session's bundle unconditionally.
func (c *Cache) Store(id string, b Bundle) {
	s := c.slotFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = &b
	c.keep(id, s)
}

// Resolve returns the cached bundle on a hit. On a miss it calls fill while
// still holding the session lock and stores the result, so concurrent turns of
// one session never interleave a read with another turn's overwrite. A fill
// error leaves the slot untouched.
func (c *Cache) Resolve(ctx context.Context, id string, window domain.TimeWindow, point domain.GeoPoint, fill FillFunc) (Bundle, bool, error) {
	s := c.slotFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundle != nil && s.bundle.Matches(window, point) {
		return *s.bundle, true, nil
	}

	b, err := fill(ctx)
	if err != nil {
		return Bundle{}, false, err
	}
	b.Window, b.Point = window, point
	s.bundle = &b
	c.keep(id, s)
	return b, false, nil
}
