package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
	"github.com/couchcryptid/ocean-query-service/internal/pipeline"
	"github.com/couchcryptid/ocean-query-service/internal/session"
)

// --- mocks ---

type mockLoader struct {
	locations []domain.ProfileLocation
	err       error
	calls     int
	lastYear  int
	lastMonth time.Month
}

func (m *mockLoader) Load(_ context.Context, year int, month time.Month) ([]domain.ProfileLocation, error) {
	m.calls++
	m.lastYear, m.lastMonth = year, month
	return m.locations, m.err
}

type mockStore struct {
	profiles []domain.ProfileRecord
	stats    []domain.MeasurementStats
	err      error
	pingErr  error
	calls    int
	lastIDs  []string
}

func (m *mockStore) FetchProfiles(_ context.Context, ids []string, _ domain.TimeWindow) ([]domain.ProfileRecord, []domain.MeasurementStats, error) {
	m.calls++
	m.lastIDs = ids
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.profiles, m.stats, nil
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

type mockNarrator struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockNarrator) Generate(_ context.Context, _, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type mockGeocoder struct {
	results map[string]domain.GeocodingResult
	calls   int
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, query string) (domain.GeocodingResult, error) {
	m.calls++
	if r, ok := m.results[query]; ok {
		return r, nil
	}
	return domain.GeocodingResult{}, domain.ErrNoGeocodeResult
}

type mockPublisher struct {
	events []domain.QueryEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.QueryEvent) error {
	m.events = append(m.events, e)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	loader    *mockLoader
	store     *mockStore
	narrator  *mockNarrator
	geocoder  *mockGeocoder
	publisher *mockPublisher
	metrics   *observability.Metrics
	assistant *pipeline.Assistant
}

func newFixture(t *testing.T, withGeocoder bool) *fixture {
	t.Helper()
	locs, profiles, stats := mockFleet()
	f := &fixture{
		loader:    &mockLoader{locations: locs},
		store:     &mockStore{profiles: profiles, stats: stats},
		narrator:  &mockNarrator{reply: "Waters near Chennai averaged 28.4 °C."},
		publisher: &mockPublisher{},
		metrics:   observability.NewMetricsForTesting(),
	}
	var geocoder domain.Geocoder
	if withGeocoder {
		f.geocoder = &mockGeocoder{results: map[string]domain.GeocodingResult{
			"coast of Chennai": {Lat: 13.08, Lon: 80.27, PlaceName: "Chennai"},
		}}
		geocoder = f.geocoder
	}
	f.assistant = pipeline.New(f.loader, f.store, f.narrator, geocoder,
		session.New(session.Config{}), f.publisher, discardLogger(), f.metrics,
		pipeline.Options{NearestK: 5})
	return f
}

// --- tests ---

func TestResolveAndAnswer_NarrativeFromCoordinates(t *testing.T) {
	f := newFixture(t, false)

	ans, err := f.assistant.ResolveAndAnswer(context.Background(), "s1",
		"What is the temperature at lat 13.0 lon 80.0 in March 2021?")
	require.NoError(t, err)

	assert.Equal(t, pipeline.KindNarrative, ans.Kind)
	assert.Equal(t, "s1", ans.SessionID)
	assert.Equal(t, f.narrator.reply, ans.Text)

	assert.Equal(t, 1, f.loader.calls)
	assert.Equal(t, 2021, f.loader.lastYear)
	assert.Equal(t, time.March, f.loader.lastMonth)
	require.NotEmpty(t, f.store.lastIDs)
	assert.Equal(t, "2902100", f.store.lastIDs[0], "sensor on the query point comes first")
	assert.LessOrEqual(t, len(f.store.lastIDs), 5)

	require.Len(t, f.narrator.prompts, 1)
	prompt := f.narrator.prompts[0]
	assert.Contains(t, prompt, "Float ID: 2902100")
	assert.Contains(t, prompt, "Temperature:")
	assert.NotContains(t, prompt, "Salinity:")
	assert.True(t, strings.HasSuffix(prompt, "Question: Summarize ocean conditions near these coordinates.\n"))

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.Equal(t, domain.LocationFromCoordinates, ev.LocationSource)
	assert.Equal(t, "answer", ev.AnswerKind)
	assert.False(t, ev.CacheHit)
	assert.Equal(t, len(f.store.profiles), ev.ProfileCount)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.SessionCache.WithLabelValues("miss")), 0)
}

func TestResolveAndAnswer_FollowUpTableReusesSession(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.assistant.ResolveAndAnswer(ctx, "s1", "temperature at lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)

	ans, err := f.assistant.ResolveAndAnswer(ctx, "s1", "now show the temperature in a table")
	require.NoError(t, err)

	assert.Equal(t, pipeline.KindTable, ans.Kind)
	assert.Equal(t, []string{"float_id", "latitude", "longitude", "depth_min", "depth_max", "temperature"}, ans.Columns)
	assert.Len(t, ans.Table, len(f.store.profiles))
	assert.Equal(t, 1, f.loader.calls, "follow-up must not reload the dataset")
	assert.Equal(t, 1, f.store.calls, "follow-up must not refetch profiles")
	assert.Len(t, f.narrator.prompts, 1, "tables never call the model")

	ev := f.publisher.events[1]
	assert.Equal(t, domain.LocationFromSession, ev.LocationSource)
	assert.True(t, ev.CacheHit)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.SessionCache.WithLabelValues("hit")), 0)
}

func TestResolveAndAnswer_SameContextDifferentShapeHitsCache(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	q := "at lat 13.0 lon 80.0 in March 2021"

	_, err := f.assistant.ResolveAndAnswer(ctx, "s1", "salinity "+q)
	require.NoError(t, err)
	_, err = f.assistant.ResolveAndAnswer(ctx, "s1", "plot salinity "+q)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.calls)
}

func TestResolveAndAnswer_NewWindowMisses(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.assistant.ResolveAndAnswer(ctx, "s1", "lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)
	_, err = f.assistant.ResolveAndAnswer(ctx, "s1", "lat 13.0 lon 80.0 in April 2021")
	require.NoError(t, err)

	assert.Equal(t, 2, f.loader.calls)
	assert.Equal(t, time.April, f.loader.lastMonth)
}

func TestResolveAndAnswer_Chart(t *testing.T) {
	f := newFixture(t, false)

	ans, err := f.assistant.ResolveAndAnswer(context.Background(), "s1",
		"plot salinity at lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)

	assert.Equal(t, pipeline.KindChart, ans.Kind)
	assert.Equal(t, f.narrator.reply, ans.Text)
	require.Len(t, ans.Chart, len(f.store.profiles))
	for _, rec := range ans.Chart {
		assert.Len(t, rec.Measurements, 3)
		assert.Contains(t, rec.Measurements, "salinity_avg")
	}
	require.Len(t, f.narrator.prompts, 1)
	assert.Contains(t, f.narrator.prompts[0], "Only report the following conditions and nothing else: salinity.")
	assert.Contains(t, f.narrator.prompts[0], "Summarize the requested conditions and provide a concise description.")
}

func TestResolveAndAnswer_GeocodedRegion(t *testing.T) {
	f := newFixture(t, true)

	ans, err := f.assistant.ResolveAndAnswer(context.Background(), "s1",
		"show me temperature near Chennai coast in March 2021")
	require.NoError(t, err)

	assert.Equal(t, pipeline.KindNarrative, ans.Kind)
	assert.Equal(t, 1, f.geocoder.calls)
	ev := f.publisher.events[0]
	assert.Equal(t, domain.LocationFromGeocoder, ev.LocationSource)
	assert.Equal(t, "coast of Chennai", ev.Candidate)
	require.NotNil(t, ev.Point)
	assert.Equal(t, domain.GeoPoint{Lat: 13.08, Lon: 80.27}, *ev.Point)
}

func TestResolveAndAnswer_Unresolved(t *testing.T) {
	f := newFixture(t, true)

	ans, err := f.assistant.ResolveAndAnswer(context.Background(), "fresh", "how warm is the water in Atlantis?")
	require.NoError(t, err)

	assert.Equal(t, pipeline.KindUnresolved, ans.Kind)
	assert.Equal(t, pipeline.UnresolvedMessage, ans.Text)
	assert.Zero(t, f.loader.calls)
	assert.Zero(t, f.store.calls)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, domain.LocationUnresolved, f.publisher.events[0].LocationSource)
}

func TestResolveAndAnswer_SessionsDoNotShareContext(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.assistant.ResolveAndAnswer(ctx, "alice", "lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)

	ans, err := f.assistant.ResolveAndAnswer(ctx, "bob", "show it as a table")
	require.NoError(t, err)
	assert.Equal(t, pipeline.KindUnresolved, ans.Kind)
}

func TestResolveAndAnswer_EmptySessionIDUsesDefault(t *testing.T) {
	f := newFixture(t, false)

	ans, err := f.assistant.ResolveAndAnswer(context.Background(), "", "lat 13.0 lon 80.0")
	require.NoError(t, err)
	assert.Equal(t, session.DefaultID, ans.SessionID)
	assert.Equal(t, 2019, f.loader.lastYear, "no date phrase falls back to the default window")
}

func TestResolveAndAnswer_NoProfiles(t *testing.T) {
	f := newFixture(t, false)
	f.store.profiles, f.store.stats = nil, nil

	ans, err := f.assistant.ResolveAndAnswer(context.Background(), "s1", "lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)

	assert.Equal(t, pipeline.KindNarrative, ans.Kind)
	assert.Equal(t, domain.NoProfilesMessage, ans.Text)
	assert.Empty(t, f.narrator.prompts)
}

func TestResolveAndAnswer_FollowUpAfterEmptyFetchIsUnresolved(t *testing.T) {
	f := newFixture(t, false)
	f.store.profiles, f.store.stats = nil, nil
	ctx := context.Background()

	_, err := f.assistant.ResolveAndAnswer(ctx, "s1", "lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)

	ans, err := f.assistant.ResolveAndAnswer(ctx, "s1", "now give me a table")
	require.NoError(t, err)

	assert.Equal(t, pipeline.KindUnresolved, ans.Kind)
	assert.Equal(t, pipeline.UnresolvedMessage, ans.Text)
	assert.Equal(t, 1, f.store.calls)
}

func TestResolveAndAnswer_CollaboratorErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantMsg string
	}{
		{"loader", func(f *fixture) { f.loader.err = errors.New("disk gone") }, "load dataset 2021-03"},
		{"store", func(f *fixture) { f.store.err = errors.New("connection refused") }, "fetch profiles"},
		{"narrator", func(f *fixture) { f.narrator.err = errors.New("quota exceeded") }, "generate narrative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			tt.setup(f)

			_, err := f.assistant.ResolveAndAnswer(context.Background(), "s1", "lat 13.0 lon 80.0 in March 2021")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Queries.WithLabelValues("error")), 0)
		})
	}
}

func TestResolveAndAnswer_FailedFetchIsNotCached(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.store.err = errors.New("timeout")

	_, err := f.assistant.ResolveAndAnswer(ctx, "s1", "lat 13.0 lon 80.0 in March 2021")
	require.Error(t, err)

	f.store.err = nil
	ans, err := f.assistant.ResolveAndAnswer(ctx, "s1", "lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)
	assert.Equal(t, pipeline.KindNarrative, ans.Kind)
	assert.Equal(t, 2, f.store.calls)
}

func TestResolveAndAnswer_PublishFailureDoesNotFailAnswer(t *testing.T) {
	f := newFixture(t, false)
	f.publisher.err = errors.New("broker unavailable")

	_, err := f.assistant.ResolveAndAnswer(context.Background(), "s1", "lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.EventsPublished.WithLabelValues("error")), 0)
}

func TestResolveAndAnswer_EventTimestampUsesClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	f := newFixture(t, false)
	_, err := f.assistant.ResolveAndAnswer(context.Background(), "s1", "lat 13.0 lon 80.0 in March 2021")
	require.NoError(t, err)

	ev := f.publisher.events[0]
	assert.Equal(t, fake.Now().UTC(), ev.ResolvedAt)

	type eventSummary struct {
		Session string
		Kind    string
		Year    int
		Month   time.Month
	}
	want := eventSummary{Session: "s1", Kind: "answer", Year: 2021, Month: time.March}
	got := eventSummary{Session: ev.SessionID, Kind: ev.AnswerKind, Year: ev.Window.Year, Month: ev.Window.Month}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.assistant.CheckReadiness(context.Background()))

	f.store.pingErr = errors.New("no route to host")
	err := f.assistant.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile store")
}
