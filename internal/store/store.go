// Package store persists scene reduction records in per-request SQLite
// files whose names encode the date range and AOI center, so existing
// stores can be discovered and reused by later overlapping requests.
package store

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/lst-ingest/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS scene_reductions (
	key           TEXT PRIMARY KEY,
	date          TEXT NOT NULL,
	time          TEXT NOT NULL,
	median_temp_c REAL NOT NULL,
	clear_sky_pct REAL NOT NULL
);`

// Store is one time-series database file. Records are insert-only and keyed
// by "date,time"; re-inserting an existing key is a silent no-op.
type Store struct {
	db     *sqlx.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the store file and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// InsertIfAbsent stores a record unless its key already exists. Returns
// true when a new row was written.
func (s *Store) InsertIfAbsent(rec domain.SceneReductionRecord) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO scene_reductions (key, date, time, median_temp_c, clear_sky_pct) VALUES (?, ?, ?, ?, ?)`,
		rec.Key(), rec.Date, rec.Time, rec.MedianTempC, rec.ClearSkyPct,
	)
	if err != nil {
		return false, fmt.Errorf("insert record %s: %w", rec.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Has reports whether a record with the key exists.
func (s *Store) Has(key string) (bool, error) {
	var n int
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM scene_reductions WHERE key = ?`, key); err != nil {
		return false, fmt.Errorf("lookup key %s: %w", key, err)
	}
	return n > 0, nil
}

// Keys returns all record keys in ascending order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	if err := s.db.Select(&keys, `SELECT key FROM scene_reductions ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Records returns all records ordered by key.
func (s *Store) Records() ([]domain.SceneReductionRecord, error) {
	var recs []domain.SceneReductionRecord
	if err := s.db.Select(&recs, `SELECT date, time, median_temp_c, clear_sky_pct FROM scene_reductions ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

// CopyInto seeds dst with this store's records whose date falls inside any
// of the intervals. Returns the number of records newly written to dst.
func (s *Store) CopyInto(dst *Store, intervals []domain.DateInterval) (int, error) {
	recs, err := s.Records()
	if err != nil {
		return 0, err
	}

	copied := 0
	for _, rec := range recs {
		day, err := rec.Day()
		if err != nil {
			continue
		}
		inRange := false
		for _, iv := range intervals {
			if iv.Contains(day) {
				inRange = true
				break
			}
		}
		if !inRange {
			continue
		}
		inserted, err := dst.InsertIfAbsent(rec)
		if err != nil {
			return copied, err
		}
		if inserted {
			copied++
		}
	}
	return copied, nil
}

// ExportSummaryCSV writes all records as CSV next to the store, for
// spreadsheet inspection. The file is rewritten on every call.
func (s *Store) ExportSummaryCSV(path string) error {
	recs, err := s.Records()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "time", "median_temp_c", "clear_sky_pct"}); err != nil {
		return err
	}
	for _, rec := range recs {
		row := []string{
			rec.Date,
			rec.Time,
			strconv.FormatFloat(rec.MedianTempC, 'f', -1, 64),
			strconv.FormatFloat(rec.ClearSkyPct, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// storeNameRe matches store file names:
// LST_2023-05-01_to_2023-09-30_45.00000_9.00000.db
var storeNameRe = regexp.MustCompile(`^LST_(\d{4}-\d{2}-\d{2})_to_(\d{4}-\d{2}-\d{2})_(-?\d+\.\d{5})_(-?\d+\.\d{5})\.db$`)

// PathFor returns the canonical store path for a request.
func PathFor(dir string, interval domain.DateInterval, lat, lon float64) string {
	name := fmt.Sprintf("LST_%s_to_%s_%.5f_%.5f.db",
		interval.Start.Format("2006-01-02"), interval.End.Format("2006-01-02"), lat, lon)
	return filepath.Join(dir, name)
}

// Info describes one discovered store file.
type Info struct {
	Path     string
	Interval domain.DateInterval
	Lat      float64
	Lon      float64
}

// Scan lists the store files in dir, sorted by start date. Files with
// non-conforming names are ignored. A missing directory yields an empty
// result.
func Scan(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := storeNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		interval, err := domain.NewDateInterval(m[1], m[2])
		if err != nil {
			continue
		}
		lat, err1 := strconv.ParseFloat(m[3], 64)
		lon, err2 := strconv.ParseFloat(m[4], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		infos = append(infos, Info{
			Path:     filepath.Join(dir, e.Name()),
			Interval: interval,
			Lat:      lat,
			Lon:      lon,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Interval.Start.Before(infos[j].Interval.Start)
	})
	return infos, nil
}
