package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// acquisition pipeline.
type Metrics struct {
	ScenesProcessed prometheus.Counter
	RecordsStored   prometheus.Counter
	RecordsSeeded   prometheus.Counter
	PipelineRunning prometheus.Gauge

	ScenesSkipped *prometheus.CounterVec // labels: reason={already_stored,empty_scene,below_clear_sky,bad_title,read_error,acquire_error}

	// Scene acquisition metrics.
	DownloadsTotal          prometheus.Counter
	DownloadsSkipped        prometheus.Counter
	DownloadDuration        prometheus.Histogram
	SceneProcessingDuration prometheus.Histogram
	TokenRefreshes          prometheus.Counter

	// Weather coverage metrics.
	WeatherFetches      *prometheus.CounterVec // labels: outcome={success,error}
	CoverageCacheResult *prometheus.CounterVec // labels: result={full,partial,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScenesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "scenes_processed_total",
			Help:      "Total scenes reduced and offered to the store.",
		}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "records_stored_total",
			Help:      "Total new reduction records inserted into the store.",
		}),
		RecordsSeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "records_seeded_total",
			Help:      "Total records copied in from overlapping existing stores.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lst_ingest",
			Name:      "pipeline_running",
			Help:      "1 while a batch run is active, 0 otherwise.",
		}),
		ScenesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "scenes_skipped_total",
			Help:      "Scenes skipped before storage, by reason.",
		}, []string{"reason"}),
		DownloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "downloads_total",
			Help:      "Total scene archives downloaded.",
		}),
		DownloadsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "downloads_skipped_total",
			Help:      "Downloads skipped because the archive already exists locally.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lst_ingest",
			Name:      "download_duration_seconds",
			Help:      "Duration of one archive download and extraction.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SceneProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lst_ingest",
			Name:      "scene_processing_duration_seconds",
			Help:      "Duration of one scene read-mask-reduce cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		TokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "token_refreshes_total",
			Help:      "Access token refreshes after an expired-token response.",
		}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "weather_fetches_total",
			Help:      "Weather API range fetches by outcome.",
		}, []string{"outcome"}),
		CoverageCacheResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lst_ingest",
			Name:      "coverage_cache_total",
			Help:      "Weather coverage cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.ScenesProcessed,
		m.RecordsStored,
		m.RecordsSeeded,
		m.PipelineRunning,
		m.ScenesSkipped,
		m.DownloadsTotal,
		m.DownloadsSkipped,
		m.DownloadDuration,
		m.SceneProcessingDuration,
		m.TokenRefreshes,
		m.WeatherFetches,
		m.CoverageCacheResult,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ScenesProcessed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "scenes_processed_total"}),
		RecordsStored:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "records_stored_total"}),
		RecordsSeeded:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "records_seeded_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "lst_ingest", Name: "pipeline_running"}),
		ScenesSkipped:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "scenes_skipped_total"}, []string{"reason"}),
		DownloadsTotal:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "downloads_total"}),
		DownloadsSkipped:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "downloads_skipped_total"}),
		DownloadDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "lst_ingest", Name: "download_duration_seconds"}),
		SceneProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "lst_ingest", Name: "scene_processing_duration_seconds"}),
		TokenRefreshes:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "token_refreshes_total"}),
		WeatherFetches:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "weather_fetches_total"}, []string{"outcome"}),
		CoverageCacheResult:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lst_ingest", Name: "coverage_cache_total"}, []string{"result"}),
	}
}
