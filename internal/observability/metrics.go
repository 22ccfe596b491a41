package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ocean_query"

// Metrics holds the Prometheus counters, histograms, and gauges for query
// resolution and its collaborators.
type Metrics struct {
	Queries            *prometheus.CounterVec // labels: kind={answer,visualization,table,unresolved,error}
	LocationResolution *prometheus.CounterVec // labels: source={coordinates,geocoded,session,unresolved}
	SessionCache       *prometheus.CounterVec // labels: result={hit,miss}
	Sessions           prometheus.Gauge
	QueryDuration      prometheus.Histogram

	// Retrieval metrics.
	NeighbourCount  prometheus.Histogram
	ProfilesFetched prometheus.Histogram
	DatasetRecords  prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: provider, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
	GeocodeEnabled     prometheus.Gauge

	// Narrative and event metrics.
	NarrativeRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	NarrativeDuration *prometheus.HistogramVec // labels: provider
	EventsPublished   *prometheus.CounterVec   // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered queries by answer kind.",
		}, []string{"kind"}),
		LocationResolution: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_resolution_total",
			Help:      "Query locations by how they were resolved.",
		}, []string{"source"}),
		SessionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_cache_total",
			Help:      "Session continuity lookups by result.",
		}, []string{"result"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of a complete resolve-and-answer cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		NeighbourCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nearest_sensors",
			Help:      "Distinct sensors returned by the nearest-profile search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 11},
		}),
		ProfilesFetched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "profiles_fetched",
			Help:      "Profiles returned by storage per query.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		DatasetRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Index records loaded for a month before time filtering.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when a geocoding provider is configured, 0 otherwise.",
		}),
		NarrativeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_requests_total",
			Help:      "Language-model requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		NarrativeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrative_duration_seconds",
			Help:      "Language-model request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Query events written to Kafka by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Queries,
		m.LocationResolution,
		m.SessionCache,
		m.Sessions,
		m.QueryDuration,
		m.NeighbourCount,
		m.ProfilesFetched,
		m.DatasetRecords,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.NarrativeRequests,
		m.NarrativeDuration,
		m.EventsPublished,
	)

	return m
}
