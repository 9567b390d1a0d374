package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lst-ingest/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(date, clock string, temp float64) domain.SceneReductionRecord {
	return domain.SceneReductionRecord{Date: date, Time: clock, MedianTempC: temp, ClearSkyPct: 42.0}
}

func interval(t *testing.T, start, end string) domain.DateInterval {
	t.Helper()
	iv, err := domain.NewDateInterval(start, end)
	require.NoError(t, err)
	return iv
}

func TestInsertIfAbsent(t *testing.T) {
	s := openTestStore(t)
	rec := testRecord("2023-05-12", "10:10:15", 24.5)

	t.Run("first insert", func(t *testing.T) {
		inserted, err := s.InsertIfAbsent(rec)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("duplicate key is a no-op", func(t *testing.T) {
		changed := rec
		changed.MedianTempC = 99.0
		inserted, err := s.InsertIfAbsent(changed)
		require.NoError(t, err)
		assert.False(t, inserted)

		recs, err := s.Records()
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, 24.5, recs[0].MedianTempC)
	})
}

func TestHasAndKeys(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertIfAbsent(testRecord("2023-05-12", "10:10:15", 24.5))
	require.NoError(t, err)
	_, err = s.InsertIfAbsent(testRecord("2023-05-10", "21:05:00", 18.0))
	require.NoError(t, err)

	has, err := s.Has("2023-05-12,10:10:15")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.Has("2023-05-13,00:00:00")
	require.NoError(t, err)
	assert.False(t, has)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-05-10,21:05:00", "2023-05-12,10:10:15"}, keys)
}

func TestCopyInto(t *testing.T) {
	src := openTestStore(t)
	for _, rec := range []domain.SceneReductionRecord{
		testRecord("2023-05-10", "10:00:00", 20.0),
		testRecord("2023-06-15", "10:00:00", 25.0),
		testRecord("2023-10-01", "10:00:00", 15.0),
	} {
		_, err := src.InsertIfAbsent(rec)
		require.NoError(t, err)
	}

	t.Run("copies only records inside the intervals", func(t *testing.T) {
		dst := openTestStore(t)
		copied, err := src.CopyInto(dst, []domain.DateInterval{interval(t, "2023-05-01", "2023-09-30")})

		require.NoError(t, err)
		assert.Equal(t, 2, copied)

		keys, err := dst.Keys()
		require.NoError(t, err)
		assert.Equal(t, []string{"2023-05-10,10:00:00", "2023-06-15,10:00:00"}, keys)
	})

	t.Run("already present records do not count", func(t *testing.T) {
		dst := openTestStore(t)
		_, err := dst.InsertIfAbsent(testRecord("2023-05-10", "10:00:00", 20.0))
		require.NoError(t, err)

		copied, err := src.CopyInto(dst, []domain.DateInterval{interval(t, "2023-05-01", "2023-09-30")})
		require.NoError(t, err)
		assert.Equal(t, 1, copied)
	})
}

func TestExportSummaryCSV(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertIfAbsent(testRecord("2023-05-12", "10:10:15", 24.5))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, s.ExportSummaryCSV(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,time,median_temp_c,clear_sky_pct\n2023-05-12,10:10:15,24.5,42\n", string(content))
}

func TestPathFor(t *testing.T) {
	path := PathFor("/data", interval(t, "2023-05-01", "2023-09-30"), 45.0, 9.0)
	assert.Equal(t, "/data/LST_2023-05-01_to_2023-09-30_45.00000_9.00000.db", path)
}

func TestScan(t *testing.T) {
	t.Run("discovers and sorts store files", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"LST_2023-05-01_to_2023-09-30_45.00000_9.00000.db",
			"LST_2022-05-01_to_2022-09-30_45.00000_9.00000.db",
			"LST_2022-05-01_to_2022-09-30_-3.50000_9.00000.db",
			"notes.txt",
			"LST_malformed.db",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}

		infos, err := Scan(dir)

		require.NoError(t, err)
		require.Len(t, infos, 3)
		assert.Equal(t, interval(t, "2022-05-01", "2022-09-30"), infos[0].Interval)
		assert.Equal(t, interval(t, "2023-05-01", "2023-09-30"), infos[2].Interval)
	})

	t.Run("negative coordinates", func(t *testing.T) {
		dir := t.TempDir()
		name := "LST_2023-05-01_to_2023-09-30_-45.12345_-120.00000.db"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))

		infos, err := Scan(dir)

		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, -45.12345, infos[0].Lat)
		assert.Equal(t, -120.0, infos[0].Lon)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		infos, err := Scan(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, infos)
	})
}
