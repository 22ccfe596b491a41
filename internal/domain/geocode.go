package domain

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultGeocodeTimeout bounds a single geocoding attempt.
const DefaultGeocodeTimeout = 10 * time.Second

// LocateConfig controls how region candidates are geocoded.
type LocateConfig struct {
	// AttemptTimeout bounds each geocoder call. Zero means DefaultGeocodeTimeout.
	AttemptTimeout time.Duration
	// Concurrency is the number of candidates geocoded at once. Values below
	// 2 geocode sequentially and stop at the first success.
	Concurrency int
}

// LocationResult is a resolved query point and how it was obtained.
type LocationResult struct {
	Point     GeoPoint
	Source    LocationSource
	Candidate string
}

// ResolveLocation turns query text into a point. Explicit coordinates win;
// otherwise each region candidate is geocoded in priority order and the
// highest-priority success is returned. Geocoder failures never surface as
// errors (graceful degradation): ok is false when nothing resolved.
func ResolveLocation(ctx context.Context, text string, geocoder Geocoder, cfg LocateConfig, logger *slog.Logger) (LocationResult, bool) {
	if p, ok := ParseCoordinates(text); ok {
		return LocationResult{Point: p, Source: LocationFromCoordinates}, true
	}
	if geocoder == nil {
		return LocationResult{}, false
	}

	candidates := ExtractRegionCandidates(text)
	if len(candidates) == 0 {
		return LocationResult{}, false
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultGeocodeTimeout
	}

	if cfg.Concurrency < 2 {
		return geocodeSequential(ctx, candidates, geocoder, cfg.AttemptTimeout, logger)
	}
	return geocodeConcurrent(ctx, candidates, geocoder, cfg, logger)
}

func geocodeSequential(ctx context.Context, candidates []string, geocoder Geocoder, timeout time.Duration, logger *slog.Logger) (LocationResult, bool) {
	for _, c := range candidates {
		if ctx.Err() != nil {
			return LocationResult{}, false
		}
		if p, ok := geocodeOne(ctx, c, geocoder, timeout, logger); ok {
			return LocationResult{Point: p, Source: LocationFromGeocoder, Candidate: c}, true
		}
	}
	return LocationResult{}, false
}

// geocodeConcurrent fans candidates out but still returns the lowest-index
// success, so the answer matches the sequential order. Outstanding calls are
// cancelled once every candidate ahead of the best success has finished.
func geocodeConcurrent(ctx context.Context, candidates []string, geocoder Geocoder, cfg LocateConfig, logger *slog.Logger) (LocationResult, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		done   = make([]bool, len(candidates))
		found  = make([]bool, len(candidates))
		points = make([]GeoPoint, len(candidates))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			p, ok := geocodeOne(gctx, c, geocoder, cfg.AttemptTimeout, logger)

			mu.Lock()
			defer mu.Unlock()
			done[i], found[i], points[i] = true, ok, p
			if _, settled := bestSettled(done, found); settled {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	for i := range candidates {
		if found[i] {
			return LocationResult{Point: points[i], Source: LocationFromGeocoder, Candidate: candidates[i]}, true
		}
	}
	return LocationResult{}, false
}

// bestSettled reports the first success whose predecessors have all finished.
func bestSettled(done, found []bool) (int, bool) {
	for i := range done {
		if !done[i] {
			return 0, false
		}
		if found[i] {
			return i, true
		}
	}
	return 0, false
}

func geocodeOne(ctx context.Context, candidate string, geocoder Geocoder, timeout time.Duration, logger *slog.Logger) (GeoPoint, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := geocoder.ForwardGeocode(attemptCtx, candidate)
	switch {
	case errors.Is(err, ErrNoGeocodeResult):
		logger.Debug("no geocoding match", "candidate", candidate)
		return GeoPoint{}, false
	case err != nil:
		if ctx.Err() == nil {
			logger.Warn("forward geocoding failed", "candidate", candidate, "error", err)
		}
		return GeoPoint{}, false
	}

	p := res.Point()
	if !p.Valid() {
		logger.Warn("geocoder returned out-of-range coordinates", "candidate", candidate, "lat", p.Lat, "lon", p.Lon)
		return GeoPoint{}, false
	}
	return p, true
}
