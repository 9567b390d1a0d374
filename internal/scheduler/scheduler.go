// Package scheduler periodically triggers batch runs over a trailing date
// window.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/pipeline"
)

// Runner executes one batch run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.BatchSummary, error)
}

// Scheduler drives the runner on a fixed interval. Each tick requests the
// trailing lookback window ending today, so a long-running daemon keeps the
// store current without re-requesting the full history.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	runner      Runner
	interval    time.Duration
	lookback    int
	centerLat   float64
	centerLon   float64
	sideLengthM float64
	logger      *slog.Logger
}

// New creates a Scheduler.
func New(runner Runner, interval time.Duration, lookbackDays int, centerLat, centerLon, sideLengthM float64, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		runner:      runner,
		interval:    interval,
		lookback:    lookbackDays,
		centerLat:   centerLat,
		centerLon:   centerLon,
		sideLengthM: sideLengthM,
		logger:      logger,
	}
}

// RunOnce executes a single trailing-window batch run.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	req := pipeline.Request{
		Interval:    domain.TrailingInterval(s.lookback),
		CenterLat:   s.centerLat,
		CenterLon:   s.centerLon,
		SideLengthM: s.sideLengthM,
	}
	s.logger.Info("scheduled batch run", "interval", req.Interval.String())

	summary, err := s.runner.Run(ctx, req)
	if err != nil {
		s.logger.Error("scheduled batch run failed", "error", err)
		return err
	}
	s.logger.Info("scheduled batch run finished", "stored", summary.Stored, "seeded", summary.Seeded)
	return nil
}

// Start schedules the periodic job, running the first batch immediately,
// and starts the underlying scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		if ctx.Err() != nil {
			return
		}
		_ = s.RunOnce(ctx) //nolint:errcheck // failures are logged, next tick retries
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts the underlying scheduler. Running jobs finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
