package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hooklinehq/hookline/internal/metrics"
)

const (
	defaultSweepInterval = 10 * time.Minute
	defaultMaxAge        = time.Hour

	// sweepTimeout bounds a single sweep, listing included.
	sweepTimeout = 2 * time.Minute
)

// Janitor removes staged objects that outlive their analysis run. Cleanup
// after a successful run is immediate; the sweep only catches objects
// orphaned by crashes and partial failures.
type Janitor struct {
	logger   *slog.Logger
	provider Provider
	cron     *cron.Cron
	interval time.Duration
	maxAge   time.Duration
}

// NewJanitor builds a Janitor sweeping provider every interval, removing
// staged objects older than maxAge.
func NewJanitor(log *slog.Logger, provider Provider, interval, maxAge time.Duration) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Janitor{
		logger:   log.With(slog.String("component", "janitor")),
		provider: provider,
		cron:     cron.New(),
		interval: interval,
		maxAge:   maxAge,
	}
}

// Start schedules periodic sweeps and returns immediately.
func (j *Janitor) Start() error {
	if j.provider == nil {
		return ErrNotConfigured
	}
	if _, err := j.cron.AddFunc("@every "+j.interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := j.Sweep(ctx); err != nil {
			j.logger.Error("sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Info("janitor started",
		slog.Duration("interval", j.interval),
		slog.Duration("max_age", j.maxAge))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("janitor stopped")
}

// Sweep deletes staged objects older than the configured maximum age.
// A failed delete is logged and skipped so one stuck object cannot wedge
// the whole sweep.
func (j *Janitor) Sweep(ctx context.Context) error {
	keys, err := j.provider.ListOlderThan(ctx, time.Now().Add(-j.maxAge))
	if err != nil {
		return fmt.Errorf("list staged objects: %w", err)
	}
	metrics.StagedSweeps.Inc()
	removed := 0
	for _, key := range keys {
		if err := j.provider.Delete(ctx, key); err != nil {
			j.logger.Warn("remove staged object failed", slog.String("key", key), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		metrics.StagedObjectsRemoved.Add(float64(removed))
		j.logger.Info("staged objects removed", slog.Int("count", removed))
	}
	return nil
}
