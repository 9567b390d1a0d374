// Package coverage caches daily weather data as CSV extracts on disk and
// fills gaps from the upstream API, so a date range is never fetched twice
// for the same coordinate.
package coverage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
)

// Fetcher retrieves weather days for a coordinate and date range from the
// upstream API.
type Fetcher interface {
	FetchRange(ctx context.Context, lat, lon float64, interval domain.DateInterval) ([]domain.WeatherDay, error)
}

// extractNameRe matches extract file names:
// WeatherData_2023-05-01_to_2023-09-30_45.00000_9.00000.csv
var extractNameRe = regexp.MustCompile(`^WeatherData_(\d{4}-\d{2}-\d{2})_to_(\d{4}-\d{2}-\d{2})_(-?\d+\.\d{5})_(-?\d+\.\d{5})\.csv$`)

// NormalizeCoords renders coordinates the way extract file names encode
// them, five decimal places, so lookups and file names always agree.
func NormalizeCoords(lat, lon float64) (string, string) {
	return strconv.FormatFloat(lat, 'f', 5, 64), strconv.FormatFloat(lon, 'f', 5, 64)
}

// Cache is a directory of weather extracts plus a fetcher for the gaps.
type Cache struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCache creates a cache over dir.
func NewCache(dir string, fetcher Fetcher, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{dir: dir, fetcher: fetcher, logger: logger, metrics: metrics}
}

type extract struct {
	path     string
	interval domain.DateInterval
}

// Get returns the weather days covering the request, reading from disk
// where possible and fetching only the missing sub-ranges. Sub-ranges whose
// fetch failed are returned alongside the rows that could be assembled; the
// caller decides whether partial coverage is acceptable. The merged result
// is persisted under the request's canonical name only when nothing failed,
// so an incomplete extract can never masquerade as a complete one.
func (c *Cache) Get(ctx context.Context, lat, lon float64, req domain.DateInterval) ([]domain.WeatherDay, []domain.DateInterval, error) {
	extracts, err := c.scan(lat, lon)
	if err != nil {
		return nil, nil, err
	}

	// A single extract covering the whole request answers it outright.
	if full := coveringExtract(extracts, req); full != nil {
		rows, err := ReadExtract(full.path)
		if err != nil {
			return nil, nil, err
		}
		rows = sliceToInterval(rows, req)
		c.metrics.CoverageCacheResult.WithLabelValues("full").Inc()
		if !full.interval.Start.Equal(req.Start) || !full.interval.End.Equal(req.End) {
			if err := c.persist(lat, lon, req, rows); err != nil {
				c.logger.Warn("failed to persist sliced extract", "error", err)
			}
		}
		return rows, nil, nil
	}

	overlapping := overlappingExtracts(extracts, req)
	result := "miss"
	if len(overlapping) > 0 {
		result = "partial"
	}
	c.metrics.CoverageCacheResult.WithLabelValues(result).Inc()

	rows, covered, err := c.readOverlapping(overlapping, req)
	if err != nil {
		return nil, nil, err
	}

	var failed []domain.DateInterval
	for _, gap := range missingRanges(req, covered) {
		fetched, err := c.fetcher.FetchRange(ctx, lat, lon, gap)
		if err != nil {
			c.logger.Warn("weather sub-range fetch failed", "interval", gap.String(), "error", err)
			failed = append(failed, gap)
			continue
		}
		rows = append(rows, sliceToInterval(fetched, gap)...)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	if len(failed) == 0 {
		if err := c.persist(lat, lon, req, rows); err != nil {
			c.logger.Warn("failed to persist merged extract", "error", err)
		}
	}
	return rows, failed, nil
}

func (c *Cache) scan(lat, lon float64) ([]extract, error) {
	latS, lonS := NormalizeCoords(lat, lon)

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.dir, err)
	}

	var extracts []extract
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := extractNameRe.FindStringSubmatch(e.Name())
		if m == nil || m[3] != latS || m[4] != lonS {
			continue
		}
		interval, err := domain.NewDateInterval(m[1], m[2])
		if err != nil {
			continue
		}
		extracts = append(extracts, extract{path: filepath.Join(c.dir, e.Name()), interval: interval})
	}

	// Earliest start first; among equal starts the widest range first.
	sort.Slice(extracts, func(i, j int) bool {
		si, sj := extracts[i].interval.Start, extracts[j].interval.Start
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return extracts[i].interval.End.After(extracts[j].interval.End)
	})
	return extracts, nil
}

func coveringExtract(extracts []extract, req domain.DateInterval) *extract {
	for i := range extracts {
		iv := extracts[i].interval
		if !iv.Start.After(req.Start) && !iv.End.Before(req.End) {
			return &extracts[i]
		}
	}
	return nil
}

func overlappingExtracts(extracts []extract, req domain.DateInterval) []extract {
	var out []extract
	for _, e := range extracts {
		if e.interval.Start.After(req.End) || e.interval.End.Before(req.Start) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// readOverlapping collects in-range rows from the overlapping extracts,
// first extract wins on duplicate dates, and returns the clipped intervals
// they cover.
func (c *Cache) readOverlapping(overlapping []extract, req domain.DateInterval) ([]domain.WeatherDay, []domain.DateInterval, error) {
	var rows []domain.WeatherDay
	var covered []domain.DateInterval
	seen := make(map[time.Time]bool)

	for _, e := range overlapping {
		fileRows, err := ReadExtract(e.path)
		if err != nil {
			return nil, nil, err
		}
		for _, row := range fileRows {
			if !req.Contains(row.Date) || seen[row.Date] {
				continue
			}
			seen[row.Date] = true
			rows = append(rows, row)
		}

		clipped := e.interval
		if clipped.Start.Before(req.Start) {
			clipped.Start = req.Start
		}
		if clipped.End.After(req.End) {
			clipped.End = req.End
		}
		covered = append(covered, clipped)
	}
	return rows, covered, nil
}

// missingRanges returns the day-granular gaps of req not covered by the
// given intervals.
func missingRanges(req domain.DateInterval, covered []domain.DateInterval) []domain.DateInterval {
	merged := mergeIntervals(covered)

	var gaps []domain.DateInterval
	cursor := req.Start
	for _, iv := range merged {
		if iv.Start.After(cursor) {
			gaps = append(gaps, domain.DateInterval{Start: cursor, End: iv.Start.AddDate(0, 0, -1)})
		}
		if next := iv.End.AddDate(0, 0, 1); next.After(cursor) {
			cursor = next
		}
	}
	if !cursor.After(req.End) {
		gaps = append(gaps, domain.DateInterval{Start: cursor, End: req.End})
	}
	return gaps
}

func mergeIntervals(ivs []domain.DateInterval) []domain.DateInterval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]domain.DateInterval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []domain.DateInterval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		// Adjacent days merge too: a gap needs at least one uncovered day.
		if !iv.Start.After(last.End.AddDate(0, 0, 1)) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func sliceToInterval(rows []domain.WeatherDay, iv domain.DateInterval) []domain.WeatherDay {
	var out []domain.WeatherDay
	for _, row := range rows {
		if iv.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out
}

func (c *Cache) persist(lat, lon float64, req domain.DateInterval, rows []domain.WeatherDay) error {
	latS, lonS := NormalizeCoords(lat, lon)
	name := fmt.Sprintf("WeatherData_%s_to_%s_%s_%s.csv",
		req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"), latS, lonS)
	return WriteExtract(filepath.Join(c.dir, name), rows)
}

var extractHeader = []string{"datetime", "tempmin", "tempmax", "precip", "precipprob", "precipcover"}

// WriteExtract writes rows as a canonical extract CSV, creating the
// directory as needed.
func WriteExtract(path string, rows []domain.WeatherDay) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create extract: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(extractHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			strconv.FormatFloat(row.TempMin, 'f', -1, 64),
			strconv.FormatFloat(row.TempMax, 'f', -1, 64),
			strconv.FormatFloat(row.Precip, 'f', -1, 64),
			strconv.FormatFloat(row.PrecipProb, 'f', -1, 64),
			strconv.FormatFloat(row.PrecipCover, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadExtract reads a canonical extract CSV.
func ReadExtract(path string) ([]domain.WeatherDay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read extract header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range extractHeader[:3] {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("extract %s missing %q column", path, required)
		}
	}

	var rows []domain.WeatherDay
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read extract row: %w", err)
		}
		date, err := time.ParseInLocation("2006-01-02", record[col["datetime"]], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad datetime in extract %s: %w", path, err)
		}
		tempMin, err := strconv.ParseFloat(record[col["tempmin"]], 64)
		if err != nil {
			return nil, fmt.Errorf("bad tempmin in extract %s: %w", path, err)
		}
		tempMax, err := strconv.ParseFloat(record[col["tempmax"]], 64)
		if err != nil {
			return nil, fmt.Errorf("bad tempmax in extract %s: %w", path, err)
		}
		row := domain.WeatherDay{Date: date, TempMin: tempMin, TempMax: tempMax}
		if i, ok := col["precip"]; ok && i < len(record) {
			row.Precip, _ = strconv.ParseFloat(record[i], 64)
		}
		if i, ok := col["precipprob"]; ok && i < len(record) {
			row.PrecipProb, _ = strconv.ParseFloat(record[i], 64)
		}
		if i, ok := col["precipcover"]; ok && i < len(record) {
			row.PrecipCover, _ = strconv.ParseFloat(record[i], 64)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
