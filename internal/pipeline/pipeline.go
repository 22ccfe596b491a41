// Package pipeline answers free-text ocean questions: it resolves the time
// window and location, reuses or fetches profiles for the session, and shapes
// the result into a narrative, chart or table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
	"github.com/couchcryptid/ocean-query-service/internal/session"
)

// UnresolvedMessage is the answer when no location could be determined.
const UnresolvedMessage = "Could not determine location. Please provide lat/lon or a valid region."

// DatasetLoader reads the float index records for one month.
type DatasetLoader interface {
	Load(ctx context.Context, year int, month time.Month) ([]domain.ProfileLocation, error)
}

// ProfileStore fetches profiles and their aligned statistics. Empty sensorIDs
// yields two empty slices without contacting storage.
type ProfileStore interface {
	FetchProfiles(ctx context.Context, sensorIDs []string, window domain.TimeWindow) ([]domain.ProfileRecord, []domain.MeasurementStats, error)
}

// NarrativeEngine turns a prompt into answer text. Conversation memory is
// kept per session inside the engine.
type NarrativeEngine interface {
	Generate(ctx context.Context, sessionID, prompt string) (string, error)
}

// EventPublisher emits one audit event per answered query.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.QueryEvent) error
}

// Pinger is implemented by collaborators that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes query resolution.
type Options struct {
	NearestK int
	Locate   domain.LocateConfig
}

// Assistant orchestrates resolve-and-answer for chat turns.
type Assistant struct {
	loader    DatasetLoader
	store     ProfileStore
	narrator  NarrativeEngine
	geocoder  domain.Geocoder
	sessions  *session.Cache
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
}

// New creates an Assistant. geocoder and publisher may be nil: without a
// geocoder only explicit coordinates resolve, without a publisher no events
// are emitted.
func New(
	loader DatasetLoader,
	store ProfileStore,
	narrator NarrativeEngine,
	geocoder domain.Geocoder,
	sessions *session.Cache,
	publisher EventPublisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Assistant {
	if opts.NearestK <= 0 {
		opts.NearestK = domain.DefaultNearestK
	}
	return &Assistant{
		loader:    loader,
		store:     store,
		narrator:  narrator,
		geocoder:  geocoder,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil when the profile store is reachable, or when it
// offers no health check.
func (a *Assistant) CheckReadiness(ctx context.Context) error {
	p, ok := a.store.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("profile store: %w", err)
	}
	return nil
}

// ResolveAndAnswer runs one chat turn for the session. Resolution failures
// never produce errors: an unresolvable location yields an Unresolved answer.
// Errors come only from the dataset loader, the profile store or the
// narrative engine.
func (a *Assistant) ResolveAndAnswer(ctx context.Context, sessionID, text string) (Answer, error) {
	start := time.Now()
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	log := a.logger.With("session_id", sessionID)
	event := domain.NewQueryEvent(sessionID, text)

	intent := domain.ClassifyIntent(text)
	window := domain.ResolveTimeWindow(text)
	log.Debug("time window resolved",
		"year", window.Year, "month", int(window.Month),
		"shape", intent.Shape(), "variables", intent.Variables)

	loc, ok := domain.ResolveLocation(ctx, text, a.geocoder, a.opts.Locate, log)
	if !ok {
		// Only a context that produced profiles is worth following up on.
		last, found := a.sessions.Last(sessionID)
		if !found || len(last.Profiles) == 0 {
			log.Info("location unresolved")
			a.metrics.LocationResolution.WithLabelValues(string(domain.LocationUnresolved)).Inc()
			a.metrics.Queries.WithLabelValues(string(KindUnresolved)).Inc()
			event.AnswerKind = string(KindUnresolved)
			event.LocationSource = domain.LocationUnresolved
			a.publish(ctx, event)
			return Answer{Kind: KindUnresolved, SessionID: sessionID, Text: UnresolvedMessage}, nil
		}
		window = last.Window
		loc = domain.LocationResult{Point: last.Point, Source: domain.LocationFromSession}
		log.Debug("reusing previous session context", "lat", loc.Point.Lat, "lon", loc.Point.Lon)
	}
	a.metrics.LocationResolution.WithLabelValues(string(loc.Source)).Inc()
	log.Debug("location resolved",
		"source", loc.Source, "candidate", loc.Candidate,
		"lat", loc.Point.Lat, "lon", loc.Point.Lon)

	bundle, hit, err := a.sessions.Resolve(ctx, sessionID, window, loc.Point, func(ctx context.Context) (session.Bundle, error) {
		return a.fetch(ctx, log, window, loc.Point)
	})
	if err != nil {
		a.metrics.Queries.WithLabelValues(kindError).Inc()
		return Answer{}, err
	}
	a.metrics.Sessions.Set(float64(a.sessions.Len()))
	if hit {
		a.metrics.SessionCache.WithLabelValues("hit").Inc()
	} else {
		a.metrics.SessionCache.WithLabelValues("miss").Inc()
	}
	log.Info("session context ready", "cache_hit", hit, "sensors", len(bundle.SensorIDs), "profiles", len(bundle.Profiles))

	answer, err := a.project(ctx, sessionID, intent, bundle)
	if err != nil {
		a.metrics.Queries.WithLabelValues(kindError).Inc()
		return Answer{}, err
	}

	a.metrics.Queries.WithLabelValues(string(answer.Kind)).Inc()
	a.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	log.Info("query answered", "kind", answer.Kind, "duration", time.Since(start))

	event.AnswerKind = string(answer.Kind)
	event.Window = &bundle.Window
	event.Point = &bundle.Point
	event.LocationSource = loc.Source
	event.Candidate = loc.Candidate
	event.SensorIDs = bundle.SensorIDs
	event.ProfileCount = len(bundle.Profiles)
	event.CacheHit = hit
	a.publish(ctx, event)

	return answer, nil
}

// fetch runs the miss path: load the month's index, keep records valid in the
// window, pick the nearest sensors and fetch their profiles.
func (a *Assistant) fetch(ctx context.Context, log *slog.Logger, window domain.TimeWindow, point domain.GeoPoint) (session.Bundle, error) {
	locations, err := a.loader.Load(ctx, window.Year, window.Month)
	if err != nil {
		return session.Bundle{}, fmt.Errorf("load dataset %04d-%02d: %w", window.Year, int(window.Month), err)
	}
	a.metrics.DatasetRecords.Observe(float64(len(locations)))

	inWindow := domain.FilterByTime(locations, window)
	nearest := domain.NearestSensors(inWindow, point, a.opts.NearestK)
	a.metrics.NeighbourCount.Observe(float64(len(nearest.SensorIDs)))
	log.Debug("nearest sensors found",
		"loaded", len(locations), "in_window", len(inWindow), "sensors", nearest.SensorIDs)

	profiles, stats, err := a.store.FetchProfiles(ctx, nearest.SensorIDs, window)
	if err != nil {
		return session.Bundle{}, fmt.Errorf("fetch profiles: %w", err)
	}
	a.metrics.ProfilesFetched.Observe(float64(len(profiles)))

	return session.Bundle{
		SensorIDs: nearest.SensorIDs,
		Profiles:  profiles,
		Stats:     stats,
	}, nil
}

func (a *Assistant) publish(ctx context.Context, event domain.QueryEvent) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		a.logger.Warn("publish query event failed", "session_id", event.SessionID, "error", err)
		a.metrics.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	a.metrics.EventsPublished.WithLabelValues("success").Inc()
}
