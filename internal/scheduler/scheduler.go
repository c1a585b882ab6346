// Package scheduler triggers batch price updates on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"time"

	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/services/updater"
)

// Runner is implemented by *updater.Updater.
type Runner interface {
	Run(ctx context.Context) (*updater.RunReport, error)
}

type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
}

func New(runner Runner, interval time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{runner: runner, interval: interval, runOnStart: runOnStart}
}

// Start blocks until ctx is cancelled, running the updater once at start (if enabled) and
// then every interval.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("[scheduler] started, interval %v", s.interval)

	iteration := 0
	if s.runOnStart {
		iteration++
		s.tick(ctx, iteration)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[scheduler] stopped")
			return
		case <-ticker.C:
			iteration++
			s.tick(ctx, iteration)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, iteration int) {
	if ctx.Err() != nil {
		return
	}
	logger.Info("[scheduler] [iteration #%d] %s", iteration, time.Now().Format("2006-01-02 15:04:05"))
	report, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, updater.ErrRunInProgress):
		logger.Warn("[scheduler] previous run still active, skipping iteration #%d", iteration)
	case err != nil:
		logger.Error("[scheduler] ✗ iteration #%d failed: %v", iteration, err)
	default:
		logger.Info("[scheduler] ✓ iteration #%d done (ok:%d, failed:%d), next run in %v",
			iteration, report.Succeeded, report.Failed, s.interval)
	}
}
