package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/ocean-query-service/internal/adapter/geocache"
	kafkaadapter "github.com/couchcryptid/ocean-query-service/internal/adapter/kafka"
	"github.com/couchcryptid/ocean-query-service/internal/adapter/mapbox"
	"github.com/couchcryptid/ocean-query-service/internal/adapter/mapsco"
	"github.com/couchcryptid/ocean-query-service/internal/adapter/postgres"
	"github.com/couchcryptid/ocean-query-service/internal/config"
	"github.com/couchcryptid/ocean-query-service/internal/dataset"
	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/narrative"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
	"github.com/couchcryptid/ocean-query-service/internal/pipeline"
	"github.com/couchcryptid/ocean-query-service/internal/session"
)

// app holds the wired assistant and everything that must be released on exit.
type app struct {
	assistant *pipeline.Assistant
	sessions  *session.Cache
	narrator  *narrative.Engine
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	loader, err := dataset.NewLoader(cfg.DataRoot, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = loader.Close() })

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	geocoder, err := newGeocoder(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	if c, isCached := geocoder.(*geocache.CachedGeocoder); isCached {
		a.closers = append(a.closers, c.Close)
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.narrator = narrative.NewEngine(provider, narrative.Config{
		MaxTurns: cfg.NarrativeMaxTurns,
		Timeout:  cfg.NarrativeTimeout,
		IdleTTL:  cfg.SessionIdleTTL,
		Capacity: uint64(cfg.SessionCapacity),
	}, metrics, logger)
	logger.Info("narrative provider", "provider", provider.Name())

	var publisher pipeline.EventPublisher
	if cfg.KafkaEnabled {
		p := kafkaadapter.NewPublisher(cfg, logger)
		a.closers = append(a.closers, func() {
			if err := p.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		})
		publisher = p
		logger.Info("query events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaQueryTopic)
	}

	a.sessions = session.New(session.Config{
		IdleTTL:  cfg.SessionIdleTTL,
		Capacity: uint64(cfg.SessionCapacity),
	})

	a.assistant = pipeline.New(loader, store, a.narrator, geocoder, a.sessions, publisher, logger, metrics, pipeline.Options{
		NearestK: cfg.NearestK,
		Locate: domain.LocateConfig{
			AttemptTimeout: cfg.GeocoderTimeout,
			Concurrency:    cfg.GeocoderConcurrency,
		},
	})

	a.sessions.Start()
	a.narrator.Start()
	ok = true
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	if a.sessions != nil {
		a.sessions.Stop()
	}
	if a.narrator != nil {
		a.narrator.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newGeocoder returns nil when geocoding is disabled; only explicit
// coordinates resolve then.
func newGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.Geocoder, error) {
	if !cfg.GeocoderEnabled {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("geocoding disabled")
		return nil, nil
	}

	var client domain.Geocoder
	switch cfg.GeocoderProvider {
	case config.ProviderMapbox:
		client = mapbox.NewClient(cfg.MapboxToken, cfg.GeocoderTimeout, metrics, logger)
	case config.ProviderMapsCo:
		client = mapsco.NewClient(cfg.GeocoderAPIKey, cfg.GeocoderTimeout, metrics, logger)
	default:
		return nil, fmt.Errorf("unsupported geocoder provider %q", cfg.GeocoderProvider)
	}

	cached, err := geocache.New(client, cfg.GeocoderCacheSize, metrics)
	if err != nil {
		return nil, err
	}
	metrics.GeocodeEnabled.Set(1)
	logger.Info("geocoding enabled",
		"provider", cfg.GeocoderProvider,
		"cache_size", cfg.GeocoderCacheSize,
		"timeout", cfg.GeocoderTimeout,
		"concurrency", cfg.GeocoderConcurrency,
	)
	return cached, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (narrative.Provider, error) {
	switch cfg.NarrativeProvider {
	case config.ProviderGemini:
		return narrative.NewGemini(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, "")
	case config.ProviderAnthropic:
		return narrative.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	default:
		return narrative.Passthrough{}, nil
	}
}
