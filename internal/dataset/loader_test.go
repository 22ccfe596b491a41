package dataset

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestLoader(t *testing.T, root string) *Loader {
	t.Helper()
	l, err := NewLoader(root, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

const header = "floatid,latitude_min,latitude_max,longitude_min,longitude_max,date_time_min,date_time_max\n"

func TestLoad_ReadsMatchingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2021", "argo_in202103_a.txt"), header+
		"2902114,12.0,14.0,80.0,81.0,2021-03-04 06:00:00,2021-03-04 18:00:00\n"+
		"2902115,10.5,10.5,85.0,85.0,2021-03-10 00:00:00,2021-03-11 00:00:00\n")
	writeFile(t, filepath.Join(root, "2021", "argo_in202103_b.txt"), header+
		"2902116,-5.0,-4.0,70.0,72.0,2021-03-20 00:00:00,2021-03-21 00:00:00\n")
	writeFile(t, filepath.Join(root, "2021", "argo_in202104_a.txt"), header+
		"2902999,0,0,0,0,2021-04-01 00:00:00,2021-04-02 00:00:00\n")
	writeFile(t, filepath.Join(root, "2021", "argo_in202103_notes.csv"), header)

	locs, err := newTestLoader(t, root).Load(context.Background(), 2021, time.March)
	require.NoError(t, err)

	require.Len(t, locs, 3)
	assert.Equal(t, "2902114", locs[0].SensorID)
	assert.InDelta(t, 13.0, locs[0].Centroid.Lat, 1e-9)
	assert.InDelta(t, 80.5, locs[0].Centroid.Lon, 1e-9)
	assert.Equal(t, time.Date(2021, time.March, 4, 6, 0, 0, 0, time.UTC), locs[0].ValidFrom)
	assert.Equal(t, time.Date(2021, time.March, 4, 18, 0, 0, 0, time.UTC), locs[0].ValidTo)
	assert.Equal(t, filepath.Join(root, "2021", "argo_in202103_a.txt"), locs[0].FileRef)
	assert.Equal(t, "2902116", locs[2].SensorID)
	assert.Equal(t, filepath.Join(root, "2021", "argo_in202103_b.txt"), locs[2].FileRef)
}

func TestLoad_NormalizesHeadersAndSkipsBadRows(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2019", "in201901.txt"),
		"FloatID,Latitude_Min,Latitude_Max,Longitude_Min,Longitude_Max,Date_Time_Min,Date_Time_Max\n"+
			"2901001,1,3,60,62,2019-01-05 00:00:00,not-a-date\n"+
			",1,1,1,1,2019-01-05 00:00:00,2019-01-06 00:00:00\n"+
			"2901002,abc,1,1,1,2019-01-05 00:00:00,2019-01-06 00:00:00\n")

	locs, err := newTestLoader(t, root).Load(context.Background(), 2019, time.January)
	require.NoError(t, err)

	require.Len(t, locs, 1)
	assert.Equal(t, "2901001", locs[0].SensorID)
	assert.InDelta(t, 2.0, locs[0].Centroid.Lat, 1e-9)
	assert.False(t, locs[0].ValidFrom.IsZero())
	assert.True(t, locs[0].ValidTo.IsZero(), "unparseable timestamp leaves the bound unset")
}

func TestLoad_MissingDirectoryIsEmpty(t *testing.T) {
	locs, err := newTestLoader(t, t.TempDir()).Load(context.Background(), 2030, time.May)
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestLoad_NoMatchingFilesIsEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2021", "argo_in202102.txt"), header)

	locs, err := newTestLoader(t, root).Load(context.Background(), 2021, time.March)
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestIndexQuery_QuotesPaths(t *testing.T) {
	q := indexQuery([]string{"/data/o'brien/in201901.txt"})
	assert.Contains(t, q, "'/data/o''brien/in201901.txt'")
}
