// Command genmock generates a synthetic Argo-style float fleet for local
// development and integration tests: monthly index files for the dataset
// loader and a SQL seed for the profile store. It runs the real nearest
// search over the generated index so expected ids can be copied into test
// assertions.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -index-dir data/txt \
//	  -sql-out data/mock/seed.sql \
//	  -year 2021 -month 3 -floats 40
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

type options struct {
	indexDir string
	sqlOut   string
	year     int
	month    int
	floats   int
	seed     uint64
	centre   domain.GeoPoint
	spread   float64
}

// sensor is one synthetic float and its casts within the month.
type sensor struct {
	id       int64
	casts    []cast
	fileName string
}

type cast struct {
	profileID int64
	at        time.Time
	pos       domain.GeoPoint
	depthMax  float64
	levels    []level
}

type level struct {
	pressure    float64
	temperature float64
	salinity    float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts options
	flag.StringVar(&opts.indexDir, "index-dir", "", "dataset root; index files go to <dir>/<year>/")
	flag.StringVar(&opts.sqlOut, "sql-out", "", "output path for the Postgres seed")
	flag.IntVar(&opts.year, "year", 2021, "year of the generated casts")
	flag.IntVar(&opts.month, "month", 3, "month of the generated casts")
	flag.IntVar(&opts.floats, "floats", 40, "number of floats")
	flag.Uint64Var(&opts.seed, "seed", 42, "random seed")
	flag.Float64Var(&opts.centre.Lat, "lat", 13.0, "fleet centre latitude")
	flag.Float64Var(&opts.centre.Lon, "lon", 82.0, "fleet centre longitude")
	flag.Float64Var(&opts.spread, "spread", 6.0, "fleet spread in degrees")
	flag.Parse()

	if opts.indexDir == "" || opts.sqlOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -index-dir, -sql-out")
	}
	if opts.month < 1 || opts.month > 12 {
		return fmt.Errorf("invalid -month %d", opts.month)
	}

	fleet := generate(opts)

	indexPath, err := writeIndex(opts, fleet)
	if err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	log.Printf("wrote index: %s", indexPath)

	if err := writeSeedFile(opts.sqlOut, opts.year, fleet); err != nil {
		return fmt.Errorf("writing seed: %w", err)
	}
	log.Printf("wrote seed: %s", opts.sqlOut)

	printStats(opts, fleet, indexPath)
	return nil
}

// generate builds a reproducible fleet: each float drifts a little between
// two to four casts spread over the month.
func generate(opts options) []sensor {
	rng := rand.New(rand.NewPCG(opts.seed, uint64(opts.year)*100+uint64(opts.month)))
	window := domain.MonthWindow(opts.year, time.Month(opts.month))
	days := window.End.Day()

	fleet := make([]sensor, 0, opts.floats)
	nextProfile := int64(opts.year)*1_000_000 + int64(opts.month)*10_000
	for i := range opts.floats {
		f := sensor{
			id:       int64(2900000 + opts.year%100*1000 + i),
			fileName: fmt.Sprintf("nodc_%d_prof.nc", 2900000+opts.year%100*1000+i),
		}
		pos := domain.GeoPoint{
			Lat: opts.centre.Lat + (rng.Float64()*2-1)*opts.spread,
			Lon: opts.centre.Lon + (rng.Float64()*2-1)*opts.spread,
		}
		nCasts := 2 + rng.IntN(3)
		for c := range nCasts {
			day := 1 + (c*days)/nCasts + rng.IntN(max(1, days/nCasts))
			at := time.Date(opts.year, time.Month(opts.month), min(day, days), rng.IntN(24), rng.IntN(60), 0, 0, time.UTC)
			pos.Lat = clamp(pos.Lat+rng.NormFloat64()*0.05, -90, 90)
			pos.Lon = clamp(pos.Lon+rng.NormFloat64()*0.05, -180, 180)
			nextProfile++
			f.casts = append(f.casts, newCast(rng, nextProfile, at, pos))
		}
		fleet = append(fleet, f)
	}
	return fleet
}

// newCast samples a warm, fresh surface layer over a cooler, saltier deep
// layer, which is typical of the Bay of Bengal.
func newCast(rng *rand.Rand, profileID int64, at time.Time, pos domain.GeoPoint) cast {
	c := cast{profileID: profileID, at: at, pos: pos, depthMax: 1000 + rng.Float64()*1000}
	surfaceT := 27 + rng.Float64()*3
	surfaceS := 32 + rng.Float64()*2
	for p := 5.0; p <= c.depthMax; p *= 1.6 {
		frac := math.Log(p) / math.Log(c.depthMax)
		c.levels = append(c.levels, level{
			pressure:    round(p, 1),
			temperature: round(surfaceT-frac*22+rng.NormFloat64()*0.2, 3),
			salinity:    round(surfaceS+frac*2.8+rng.NormFloat64()*0.05, 3),
		})
	}
	return c
}

// writeIndex writes one CSV in the loader's layout: a file per month named
// with the in<year><month> marker.
func writeIndex(opts options, fleet []sensor) (string, error) {
	dir := filepath.Join(opts.indexDir, strconv.Itoa(opts.year))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("argo_index_in%04d%02d_mock.txt", opts.year, opts.month))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"floatid", "file", "latitude_min", "latitude_max",
		"longitude_min", "longitude_max", "date_time_min", "date_time_max",
	}); err != nil {
		return "", err
	}
	for _, fl := range fleet {
		for _, c := range fl.casts {
			row := []string{
				strconv.FormatInt(fl.id, 10),
				fl.fileName,
				fmtFloat(c.pos.Lat - 0.01), fmtFloat(c.pos.Lat + 0.01),
				fmtFloat(c.pos.Lon - 0.01), fmtFloat(c.pos.Lon + 0.01),
				c.at.Format(timeLayout), c.at.Add(6 * time.Hour).Format(timeLayout),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return path, w.Error()
}

func writeSeedFile(path string, year int, fleet []sensor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := writeSeed(bw, year, fleet); err != nil {
		return err
	}
	return bw.Flush()
}

// writeSeed emits the schema the profile store reads plus the fleet's rows.
func writeSeed(w io.Writer, year int, fleet []sensor) error {
	table := fmt.Sprintf("profiles_%d", year)
	if _, err := fmt.Fprintf(w, `CREATE TABLE IF NOT EXISTS %s (
    profile_id       BIGINT PRIMARY KEY,
    float_id         BIGINT NOT NULL,
    latitude         DOUBLE PRECISION,
    longitude        DOUBLE PRECISION,
    depth_min        DOUBLE PRECISION,
    depth_max        DOUBLE PRECISION,
    file_path        TEXT,
    profile_datetime TIMESTAMP
);
CREATE TABLE IF NOT EXISTS measurements (
    profile_id  BIGINT NOT NULL,
    pressure    DOUBLE PRECISION,
    temperature DOUBLE PRECISION,
    salinity    DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS measurements_profile_id_idx ON measurements (profile_id);

`, table); err != nil {
		return err
	}

	for _, fl := range fleet {
		for _, c := range fl.casts {
			if _, err := fmt.Fprintf(w, "INSERT INTO %s VALUES (%d, %d, %s, %s, %s, %s, '%s', '%s');\n",
				table, c.profileID, fl.id, fmtFloat(c.pos.Lat), fmtFloat(c.pos.Lon),
				fmtFloat(c.levels[0].pressure), fmtFloat(round(c.depthMax, 1)),
				fl.fileName, c.at.Format(timeLayout)); err != nil {
				return err
			}
			for _, l := range c.levels {
				if _, err := fmt.Fprintf(w, "INSERT INTO measurements VALUES (%d, %s, %s, %s);\n",
					c.profileID, fmtFloat(l.pressure), fmtFloat(l.temperature), fmtFloat(l.salinity)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func printStats(opts options, fleet []sensor, indexPath string) {
	var locations []domain.ProfileLocation
	casts := 0
	for _, fl := range fleet {
		for _, c := range fl.casts {
			casts++
			locations = append(locations, domain.ProfileLocation{
				SensorID:  strconv.FormatInt(fl.id, 10),
				FileRef:   indexPath,
				Centroid:  c.pos,
				ValidFrom: c.at,
				ValidTo:   c.at.Add(6 * time.Hour),
			})
		}
	}

	window := domain.MonthWindow(opts.year, time.Month(opts.month))
	inWindow := domain.FilterByTime(locations, window)
	nearest := domain.NearestSensors(inWindow, opts.centre, domain.DefaultNearestK)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Floats: %d, casts: %d, in window: %d\n", len(fleet), casts, len(inWindow))
	fmt.Printf("Nearest to lat %g lon %g: %v\n", opts.centre.Lat, opts.centre.Lon, nearest.SensorIDs)
	fmt.Printf("Query: temperature near lat %g lon %g in %s %d\n",
		opts.centre.Lat, opts.centre.Lon, time.Month(opts.month), opts.year)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
