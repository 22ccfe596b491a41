// Package postgres fetches float profiles and their measurement aggregates
// from the yearly profiles_<year> tables and the measurements table.
package postgres

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
)

// Store reads profiles through a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const profilesSQL = `
    SELECT profile_id::bigint,
           float_id::text,
           latitude::float8,
           longitude::float8,
           depth_min::float8,
           depth_max::float8,
           file_path::text,
           profile_datetime
    FROM %s
    WHERE float_id = ANY($1)
      AND profile_datetime BETWEEN $2::timestamp AND $3::timestamp
    ORDER BY profile_datetime
`

const statsSQL = `
    SELECT profile_id::bigint,
           MIN(pressure)::float8, MAX(pressure)::float8, AVG(pressure)::float8,
           MIN(temperature)::float8, MAX(temperature)::float8, AVG(temperature)::float8,
           MIN(salinity)::float8, MAX(salinity)::float8, AVG(salinity)::float8
    FROM measurements
    WHERE profile_id = ANY($1)
    GROUP BY profile_id
`

// FetchProfiles returns the window's profiles for the given sensors from
// profiles_<window.Year>, ordered by time, and one MeasurementStats per
// profile at the same position. Non-numeric sensor ids are ignored; when none
// remain, storage is not contacted.
func (s *Store) FetchProfiles(ctx context.Context, sensorIDs []string, window domain.TimeWindow) ([]domain.ProfileRecord, []domain.MeasurementStats, error) {
	ids := numericIDs(sensorIDs)
	if len(ids) == 0 {
		return nil, nil, nil
	}

	table := pgx.Identifier{fmt.Sprintf("profiles_%d", window.Year)}.Sanitize()
	rows, err := s.pool.Query(ctx, fmt.Sprintf(profilesSQL, table), ids, window.Start.UTC(), window.End.UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var profiles []domain.ProfileRecord
	for rows.Next() {
		var (
			p        domain.ProfileRecord
			lat, lon *float64
			file     *string
			ts       *time.Time
		)
		if err := rows.Scan(&p.ProfileID, &p.SensorID, &lat, &lon, &p.DepthMin, &p.DepthMax, &file, &ts); err != nil {
			return nil, nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Location = domain.GeoPoint{Lat: orNaN(lat), Lon: orNaN(lon)}
		if file != nil {
			p.FileRef = *file
		}
		if ts != nil {
			utc := ts.UTC()
			p.Timestamp = &utc
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, nil, nil
	}

	stats, err := s.fetchStats(ctx, profiles)
	if err != nil {
		return nil, nil, err
	}
	return profiles, stats, nil
}

func (s *Store) fetchStats(ctx context.Context, profiles []domain.ProfileRecord) ([]domain.MeasurementStats, error) {
	profileIDs := make([]int64, len(profiles))
	for i, p := range profiles {
		profileIDs[i] = p.ProfileID
	}

	rows, err := s.pool.Query(ctx, statsSQL, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	byProfile := make(map[int64]domain.MeasurementStats, len(profiles))
	for rows.Next() {
		var m domain.MeasurementStats
		if err := rows.Scan(&m.ProfileID,
			&m.Pressure.Min, &m.Pressure.Max, &m.Pressure.Avg,
			&m.Temperature.Min, &m.Temperature.Max, &m.Temperature.Avg,
			&m.Salinity.Min, &m.Salinity.Max, &m.Salinity.Avg,
		); err != nil {
			return nil, fmt.Errorf("scan measurements: %w", err)
		}
		byProfile[m.ProfileID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return alignStats(profiles, byProfile), nil
}

// alignStats orders aggregates like profiles. Profiles without readings get
// an all-null entry.
func alignStats(profiles []domain.ProfileRecord, byProfile map[int64]domain.MeasurementStats) []domain.MeasurementStats {
	out := make([]domain.MeasurementStats, len(profiles))
	for i, p := range profiles {
		m, ok := byProfile[p.ProfileID]
		if !ok {
			m = domain.MeasurementStats{ProfileID: p.ProfileID}
		}
		out[i] = m
	}
	return out
}

// numericIDs keeps the ids that parse as integers; float_id is a BIGINT.
func numericIDs(sensorIDs []string) []int64 {
	out := make([]int64, 0, len(sensorIDs))
	for _, id := range sensorIDs {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
