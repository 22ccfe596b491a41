// Package dataset reads the monthly float index files: CSV text files with
// one row per float position and the time range it covers.
package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"github.com/couchcryptid/ocean-query-service/internal/domain"
)

// Loader scans index files under root/<year>/ whose names contain
// in<year><MM>, e.g. 2019/argo_in201901_part1.txt.
type Loader struct {
	db     *sql.DB
	root   string
	logger *slog.Logger
}

// NewLoader opens an in-memory DuckDB used to parse the index files.
func NewLoader(root string, logger *slog.Logger) (*Loader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Loader{db: db, root: root, logger: logger}, nil
}

// Close releases the DuckDB handle.
func (l *Loader) Close() error {
	return l.db.Close()
}

// Files lists the index files for the month in lexical order.
func (l *Loader) Files(year int, month time.Month) ([]string, error) {
	dir := filepath.Join(l.root, strconv.Itoa(year))
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	pattern := filepath.Join(dir, fmt.Sprintf("*in%04d%02d*.txt", year, int(month)))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	return files, nil
}

// Load returns every index record of the month. A missing year directory or
// no matching files yields an empty slice. Rows without a float id or
// coordinates are skipped; unparseable timestamps leave the validity bound
// zero, which FilterByTime never matches.
func (l *Loader) Load(ctx context.Context, year int, month time.Month) ([]domain.ProfileLocation, error) {
	files, err := l.Files(year, month)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		l.logger.Debug("no index files for month", "year", year, "month", int(month), "root", l.root)
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx, indexQuery(files))
	if err != nil {
		return nil, fmt.Errorf("read index files: %w", err)
	}
	defer rows.Close()

	var out []domain.ProfileLocation
	for rows.Next() {
		var (
			loc      domain.ProfileLocation
			from, to sql.NullTime
		)
		if err := rows.Scan(&loc.SensorID, &loc.Centroid.Lat, &loc.Centroid.Lon, &from, &to, &loc.FileRef); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		if from.Valid {
			loc.ValidFrom = from.Time.UTC()
		}
		if to.Valid {
			loc.ValidTo = to.Time.UTC()
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index rows: %w", err)
	}

	l.logger.Debug("index files loaded", "year", year, "month", int(month), "files", len(files), "records", len(out))
	return out, nil
}

// indexQuery reads all files as text and casts in SQL so a malformed cell
// becomes NULL instead of failing the whole month. Rows keep file order, then
// row order within each file.
func indexQuery(files []string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + strings.ReplaceAll(f, "'", "''") + "'"
	}
	return `
SELECT floatid,
       (lat_min + lat_max) / 2 AS lat,
       (lon_min + lon_max) / 2 AS lon,
       valid_from,
       valid_to,
       filename
FROM (
    SELECT trim(floatid) AS floatid,
           TRY_CAST(latitude_min AS DOUBLE)    AS lat_min,
           TRY_CAST(latitude_max AS DOUBLE)    AS lat_max,
           TRY_CAST(longitude_min AS DOUBLE)   AS lon_min,
           TRY_CAST(longitude_max AS DOUBLE)   AS lon_max,
           TRY_CAST(date_time_min AS TIMESTAMP) AS valid_from,
           TRY_CAST(date_time_max AS TIMESTAMP) AS valid_to,
           filename
    FROM read_csv([` + strings.Join(quoted, ", ") + `],
                  header = true,
                  all_varchar = true,
                  normalize_names = true,
                  union_by_name = true,
                  filename = true)
)
WHERE floatid IS NOT NULL AND floatid <> ''
  AND lat_min IS NOT NULL AND lat_max IS NOT NULL
  AND lon_min IS NOT NULL AND lon_max IS NOT NULL`
}
