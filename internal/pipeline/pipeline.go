// Package pipeline orchestrates one batch run: catalog search, scene
// acquisition, raster masking, reduction, and storage, plus the weather
// enrichment feeding the blended surface series.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
	"github.com/couchcryptid/lst-ingest/internal/store"
)

// CatalogSearcher lists the scenes intersecting an AOI and a date interval.
type CatalogSearcher interface {
	Search(ctx context.Context, aoi domain.AreaOfInterest, interval domain.DateInterval) ([]domain.SceneDescriptor, error)
}

// Acquirer downloads and extracts one scene archive, idempotently.
type Acquirer interface {
	Acquire(ctx context.Context, scene domain.SceneDescriptor) (domain.SceneArchive, error)
}

// SceneReader loads the raster grids of an extracted scene directory.
type SceneReader interface {
	ReadGrids(dir string) (domain.RawSceneGrids, error)
}

// WeatherSource returns daily weather rows covering the interval, plus the
// sub-ranges it could not cover. Optional; a nil source disables the
// weather enrichment.
type WeatherSource interface {
	Get(ctx context.Context, lat, lon float64, req domain.DateInterval) ([]domain.WeatherDay, []domain.DateInterval, error)
}

// Request describes one batch run.
type Request struct {
	Interval    domain.DateInterval
	CenterLat   float64
	CenterLon   float64
	SideLengthM float64
}

// BatchSummary is the result of one batch run.
type BatchSummary struct {
	Interval      string         `json:"interval"`
	Windows       int            `json:"windows"`
	ScenesFound   int            `json:"scenes_found"`
	Processed     int            `json:"processed"`
	Stored        int            `json:"stored"`
	Seeded        int            `json:"seeded"`
	Skipped       map[string]int `json:"skipped"`
	FailedWindows []string       `json:"failed_windows,omitempty"`
	WeatherDays   int            `json:"weather_days"`
	WeatherFailed []string       `json:"weather_failed,omitempty"`
	SurfacePoints int            `json:"surface_points"`
	StorePath     string         `json:"store_path"`
	Duration      string         `json:"duration"`
}

// Options carries the tunables a run needs beyond its request.
type Options struct {
	DataDir              string
	ClearSkyThresholdPct float64
	MaskParams           domain.MaskParams
	SearchTimeout        time.Duration
	DownloadTimeout      time.Duration
}

// Pipeline wires the stages of a batch run.
type Pipeline struct {
	catalog  CatalogSearcher
	acquirer Acquirer
	reader   SceneReader
	weather  WeatherSource
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	ready atomic.Bool

	mu   sync.Mutex
	last *BatchSummary
}

// New creates a Pipeline. weather may be nil to disable the enrichment.
func New(catalog CatalogSearcher, acquirer Acquirer, reader SceneReader, weather WeatherSource, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		catalog:  catalog,
		acquirer: acquirer,
		reader:   reader,
		weather:  weather,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one batch run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no completed batch run yet")
	}
	return nil
}

// LastSummary returns the most recent batch summary, or nil before the
// first completed run.
func (p *Pipeline) LastSummary() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	return p.last
}

// Run executes one batch. Scene-level failures are counted and skipped;
// only structural problems (invalid request, store failures, rejected
// credentials) abort the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*BatchSummary, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	aoi, err := domain.NewAreaOfInterest(req.CenterLat, req.CenterLon, req.SideLengthM)
	if err != nil {
		return nil, err
	}

	windows := domain.SeasonalWindows(req.Interval)
	summary := &BatchSummary{
		Interval: req.Interval.String(),
		Windows:  len(windows),
		Skipped:  make(map[string]int),
	}
	p.logger.Info("batch run starting",
		"interval", req.Interval.String(),
		"center_lat", req.CenterLat,
		"center_lon", req.CenterLon,
		"windows", len(windows),
	)

	dstPath := store.PathFor(p.opts.DataDir, req.Interval, req.CenterLat, req.CenterLon)
	dst, err := store.Open(dstPath, p.logger)
	if err != nil {
		return nil, err
	}
	defer dst.Close()
	summary.StorePath = dstPath

	if err := p.seed(dst, dstPath, req, windows, summary); err != nil {
		return nil, err
	}

	weatherDays := p.fetchWeather(ctx, req, summary)

	for _, window := range windows {
		if err := p.processWindow(ctx, aoi, window, dst, summary); err != nil {
			return summary, err
		}
	}

	records, err := dst.Records()
	if err != nil {
		return summary, err
	}
	series := domain.BuildSurfaceSeries(weatherDays, records, windows)
	summary.SurfacePoints = len(series)

	csvPath := strings.TrimSuffix(dstPath, ".db") + ".csv"
	if err := dst.ExportSummaryCSV(csvPath); err != nil {
		p.logger.Warn("summary CSV export failed", "error", err)
	}

	summary.Duration = time.Since(start).Round(time.Millisecond).String()
	p.ready.Store(true)
	p.mu.Lock()
	p.last = summary
	p.mu.Unlock()

	p.logger.Info("batch run complete",
		"processed", summary.Processed,
		"stored", summary.Stored,
		"seeded", summary.Seeded,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)
	return summary, nil
}

// seed copies records from existing stores for the same coordinate whose
// range overlaps the request, so already processed scenes are not fetched
// again.
func (p *Pipeline) seed(dst *store.Store, dstPath string, req Request, windows []domain.DateInterval, summary *BatchSummary) error {
	infos, err := store.Scan(p.opts.DataDir)
	if err != nil {
		return err
	}

	reqLat, reqLon := fmt.Sprintf("%.5f", req.CenterLat), fmt.Sprintf("%.5f", req.CenterLon)
	for _, info := range infos {
		if info.Path == dstPath {
			continue
		}
		if fmt.Sprintf("%.5f", info.Lat) != reqLat || fmt.Sprintf("%.5f", info.Lon) != reqLon {
			continue
		}
		if info.Interval.Start.After(req.Interval.End) || info.Interval.End.Before(req.Interval.Start) {
			continue
		}

		src, err := store.Open(info.Path, p.logger)
		if err != nil {
			p.logger.Warn("skipping unreadable store", "path", info.Path, "error", err)
			continue
		}
		copied, err := src.CopyInto(dst, windows)
		src.Close()
		if err != nil {
			return err
		}
		if copied > 0 {
			p.logger.Info("seeded records from existing store", "path", info.Path, "records", copied)
			p.metrics.RecordsSeeded.Add(float64(copied))
			summary.Seeded += copied
		}
	}
	return nil
}

func (p *Pipeline) fetchWeather(ctx context.Context, req Request, summary *BatchSummary) []domain.WeatherDay {
	if p.weather == nil {
		return nil
	}

	days, failed, err := p.weather.Get(ctx, req.CenterLat, req.CenterLon, req.Interval)
	if err != nil {
		p.logger.Warn("weather coverage unavailable", "error", err)
		summary.WeatherFailed = append(summary.WeatherFailed, req.Interval.String())
		return nil
	}
	summary.WeatherDays = len(days)
	for _, iv := range failed {
		summary.WeatherFailed = append(summary.WeatherFailed, iv.String())
	}
	return days
}

func (p *Pipeline) processWindow(ctx context.Context, aoi domain.AreaOfInterest, window domain.DateInterval, dst *store.Store, summary *BatchSummary) error {
	searchCtx, cancel := context.WithTimeout(ctx, p.opts.SearchTimeout)
	scenes, err := p.catalog.Search(searchCtx, aoi, window)
	cancel()
	if err != nil {
		var queryErr *domain.CatalogQueryError
		if errors.As(err, &queryErr) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Error("catalog search failed, skipping window", "interval", window.String(), "error", err)
			summary.FailedWindows = append(summary.FailedWindows, window.String())
			return nil
		}
		return err
	}
	summary.ScenesFound += len(scenes)

	for _, scene := range scenes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := p.processScene(ctx, aoi, scene, dst, summary); err != nil {
			return err
		}
	}
	return nil
}

// processScene runs one scene through acquire-read-mask-reduce-store.
// Returns an error only for failures that must abort the batch.
func (p *Pipeline) processScene(ctx context.Context, aoi domain.AreaOfInterest, scene domain.SceneDescriptor, dst *store.Store, summary *BatchSummary) error {
	date, clock, err := domain.ExtractDateTime(scene.Title)
	if err != nil {
		p.skip(summary, "bad_title", scene.Title, err)
		return nil
	}

	key := date + "," + clock
	stored, err := dst.Has(key)
	if err != nil {
		return err
	}
	if stored {
		p.skip(summary, "already_stored", scene.Title, nil)
		return nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.opts.DownloadTimeout)
	archive, err := p.acquirer.Acquire(acquireCtx, scene)
	cancel()
	if err != nil {
		var authErr *domain.AuthenticationError
		if errors.As(err, &authErr) {
			return err
		}
		p.skip(summary, "acquire_error", scene.Title, err)
		return nil
	}

	start := time.Now()
	grids, err := p.reader.ReadGrids(archive.ExtractedDir)
	if err != nil {
		p.skip(summary, "read_error", scene.Title, err)
		return nil
	}

	filtered, clearSky, err := domain.MaskScene(grids, aoi, p.opts.MaskParams)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyScene) {
			p.skip(summary, "empty_scene", scene.Title, nil)
		} else {
			p.skip(summary, "read_error", scene.Title, err)
		}
		return nil
	}

	rec, err := domain.ReduceScene(scene.Title, filtered, clearSky, p.opts.ClearSkyThresholdPct)
	if err != nil {
		if errors.Is(err, domain.ErrBelowClearSkyThreshold) {
			p.skip(summary, "below_clear_sky", scene.Title, err)
		} else {
			p.skip(summary, "read_error", scene.Title, err)
		}
		return nil
	}

	inserted, err := dst.InsertIfAbsent(rec)
	if err != nil {
		return err
	}

	p.metrics.ScenesProcessed.Inc()
	p.metrics.SceneProcessingDuration.Observe(time.Since(start).Seconds())
	summary.Processed++
	if inserted {
		p.metrics.RecordsStored.Inc()
		summary.Stored++
		p.logger.Info("scene stored", "key", rec.Key(), "median_temp_c", rec.MedianTempC, "clear_sky_pct", rec.ClearSkyPct)
	}
	return nil
}

func (p *Pipeline) skip(summary *BatchSummary, reason, title string, err error) {
	p.metrics.ScenesSkipped.WithLabelValues(reason).Inc()
	summary.Skipped[reason]++
	if err != nil {
		p.logger.Warn("scene skipped", "reason", reason, "title", title, "error", err)
		return
	}
	p.logger.Debug("scene skipped", "reason", reason, "title", title)
}
