// Command ingest runs one acquisition batch for a date range and AOI
// center, then exits.
//
// Usage:
//
//	ingest -start 2023-05-01 -end 2023-09-30 -lat 45.0 -lon 9.0
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/lst-ingest/internal/adapter/copernicus"
	"github.com/couchcryptid/lst-ingest/internal/adapter/sceneio"
	"github.com/couchcryptid/lst-ingest/internal/adapter/visualcrossing"
	"github.com/couchcryptid/lst-ingest/internal/config"
	"github.com/couchcryptid/lst-ingest/internal/coverage"
	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
	"github.com/couchcryptid/lst-ingest/internal/pipeline"
)

func main() {
	start := flag.String("start", "", "range start, YYYY-MM-DD")
	end := flag.String("end", "", "range end, YYYY-MM-DD")
	lat := flag.Float64("lat", 0, "AOI center latitude")
	lon := flag.Float64("lon", 0, "AOI center longitude")
	side := flag.Float64("side", 0, "AOI side length in meters (default from config)")
	flag.Parse()

	if *start == "" || *end == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireCredentials(); err != nil {
		slog.Error("missing credentials", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	interval, err := domain.NewDateInterval(*start, *end)
	if err != nil {
		logger.Error("invalid date range", "error", err)
		os.Exit(1)
	}
	if *side == 0 {
		*side = cfg.AOISideLengthM
	}

	p := buildPipeline(cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx, pipeline.Request{
		Interval:    interval,
		CenterLat:   *lat,
		CenterLon:   *lon,
		SideLengthM: *side,
	})
	if err != nil {
		logger.Error("batch run failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}

func buildPipeline(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *pipeline.Pipeline {
	session := copernicus.NewSession(cfg.IdentityURL, cfg.ClientID, cfg.Username, cfg.Password, cfg.HTTPTimeout, logger, metrics)
	catalog := copernicus.NewCatalog(cfg.CatalogURL, cfg.ProductType, cfg.MaxRecords, session, logger)
	acquirer := copernicus.NewAcquirer(cfg.DownloadURL, cfg.DownloadDir, session, logger, metrics)
	reader := sceneio.NewReader(logger)

	var weather pipeline.WeatherSource
	if cfg.WeatherEnabled {
		client := visualcrossing.NewClient(cfg.WeatherURL, cfg.WeatherAPIKey, cfg.HTTPTimeout, logger, metrics)
		weather = coverage.NewCache(cfg.DataDir, client, logger, metrics)
		logger.Info("weather enrichment enabled")
	} else {
		logger.Info("weather enrichment disabled")
	}

	maskParams := domain.DefaultMaskParams()
	maskParams.DilationRadius = cfg.CloudDilationRadius

	return pipeline.New(catalog, acquirer, reader, weather, pipeline.Options{
		DataDir:              cfg.DataDir,
		ClearSkyThresholdPct: cfg.ClearSkyThresholdPct,
		MaskParams:           maskParams,
		SearchTimeout:        cfg.HTTPTimeout,
		DownloadTimeout:      cfg.DownloadTimeout,
	}, logger, metrics)
}
