// Command ingestd runs the acquisition pipeline as a daemon: a scheduled
// trailing-window batch run plus health, readiness, status, and metrics
// endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/lst-ingest/internal/adapter/copernicus"
	httpadapter "github.com/couchcryptid/lst-ingest/internal/adapter/http"
	"github.com/couchcryptid/lst-ingest/internal/adapter/sceneio"
	"github.com/couchcryptid/lst-ingest/internal/adapter/visualcrossing"
	"github.com/couchcryptid/lst-ingest/internal/config"
	"github.com/couchcryptid/lst-ingest/internal/coverage"
	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
	"github.com/couchcryptid/lst-ingest/internal/pipeline"
	"github.com/couchcryptid/lst-ingest/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireCredentials(); err != nil {
		slog.Error("missing credentials", "error", err)
		os.Exit(1)
	}
	if cfg.CenterLat == 0 && cfg.CenterLon == 0 {
		slog.Error("AOI_CENTER_LAT and AOI_CENTER_LON are required")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	session := copernicus.NewSession(cfg.IdentityURL, cfg.ClientID, cfg.Username, cfg.Password, cfg.HTTPTimeout, logger, metrics)
	catalog := copernicus.NewCatalog(cfg.CatalogURL, cfg.ProductType, cfg.MaxRecords, session, logger)
	acquirer := copernicus.NewAcquirer(cfg.DownloadURL, cfg.DownloadDir, session, logger, metrics)
	reader := sceneio.NewReader(logger)

	// Weather enrichment is feature-flagged via VC_API_KEY / VC_WEATHER_ENABLED.
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

	p := pipeline.New(catalog, acquirer, reader, weather, pipeline.Options{
		DataDir:              cfg.DataDir,
		ClearSkyThresholdPct: cfg.ClearSkyThresholdPct,
		MaskParams:           maskParams,
		SearchTimeout:        cfg.HTTPTimeout,
		DownloadTimeout:      cfg.DownloadTimeout,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	sched := scheduler.New(p, cfg.ScheduleInterval, cfg.LookbackDays, cfg.CenterLat, cfg.CenterLon, cfg.AOISideLengthM, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
