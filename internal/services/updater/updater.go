// Package updater records a fresh price sample for every tracked item, one item at a time.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/models"
	"steam-price-tracker/internal/services/tracker"
	"steam-price-tracker/internal/telemetry"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/time/rate"
)

// ErrRunInProgress is returned by Run while another run is active.
var ErrRunInProgress = errors.New("price update already in progress")

// PriceRecorder is the write side the updater drives. *tracker.Recorder implements it.
type PriceRecorder interface {
	Items(ctx context.Context) ([]models.Item, error)
	RecordPrice(ctx context.Context, itemID uint64) (*tracker.PriceQuote, error)
}

// Notifier receives progress events. Publish must not block.
type Notifier interface {
	Publish(Event)
}

type Options struct {
	// ItemInterval is the minimum spacing between two items. Zero disables pacing.
	ItemInterval time.Duration
	Notifier     Notifier
	Metrics      *telemetry.Metrics
}

type Updater struct {
	recorder PriceRecorder
	opts     Options

	running atomic.Bool

	mu    sync.RWMutex
	stats Stats
}

// Stats accumulates over the lifetime of the process.
type Stats struct {
	Runs           int64      `json:"runs"`
	ItemsSucceeded int64      `json:"items_succeeded"`
	ItemsFailed    int64      `json:"items_failed"`
	ItemsSkipped   int64      `json:"items_skipped"`
	Running        bool       `json:"running"`
	LastRun        *RunReport `json:"last_run,omitempty"`
}

// ItemFailure describes one item that could not be updated.
type ItemFailure struct {
	ItemID         uint64 `json:"item_id"`
	MarketHashName string `json:"market_hash_name"`
	Kind           string `json:"kind"`
	Error          string `json:"error"`
}

type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Cancelled  bool          `json:"cancelled,omitempty"`
	Failures   []ItemFailure `json:"failures,omitempty"`
}

// Duration of the run.
func (r *RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func New(recorder PriceRecorder, opts Options) *Updater {
	return &Updater{recorder: recorder, opts: opts}
}

// Running reports whether a run is active.
func (u *Updater) Running() bool { return u.running.Load() }

// Stats returns a snapshot of the cumulative counters.
func (u *Updater) Stats() Stats {
	u.mu.RLock()
	defer u.mu.RUnlock()
	s := u.stats
	s.Running = u.running.Load()
	if s.LastRun != nil {
		last := *s.LastRun
		last.Failures = append([]ItemFailure(nil), s.LastRun.Failures...)
		s.LastRun = &last
	}
	return s
}

// Run updates every tracked item sequentially. Item failures are logged and reported but do
// not stop the run; the only run-level failure is not being able to list the items.
// Cancelling ctx stops the run between items and the rest are reported as skipped.
func (u *Updater) Run(ctx context.Context) (*RunReport, error) {
	if !u.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer u.running.Store(false)

	report := &RunReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger.Info("[updater] starting price update run %s", report.RunID)

	items, err := u.recorder.Items(ctx)
	if err != nil {
		logger.Error("[updater] run %s could not list items: %v", report.RunID, err)
		return nil, fmt.Errorf("list items: %w", err)
	}
	report.Total = len(items)
	u.publish(Event{Type: EventRunStarted, RunID: report.RunID, Total: report.Total})
	logger.Info("[updater] found %d items to update", len(items))

	var limiter *rate.Limiter
	if u.opts.ItemInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(u.opts.ItemInterval), 1)
	}

	for i, item := range items {
		if err := u.pace(ctx, limiter); err != nil {
			report.Cancelled = true
			report.Skipped = len(items) - i
			logger.Warn("[updater] run %s stopped, %d items skipped: %v", report.RunID, report.Skipped, err)
			u.opts.Metrics.RecordUpdaterItemN(ctx, "skipped", report.Skipped)
			break
		}

		pq, err := u.updateOne(ctx, item)
		ev := Event{
			Type:           EventItemUpdated,
			RunID:          report.RunID,
			Index:          i + 1,
			Total:          len(items),
			ItemID:         item.ID,
			MarketHashName: item.MarketHashName,
		}
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, ItemFailure{
				ItemID:         item.ID,
				MarketHashName: item.MarketHashName,
				Kind:           string(errs.KindOf(err)),
				Error:          errs.Message(err),
			})
			ev.Type = EventItemFailed
			ev.Error = errs.Message(err)
			u.opts.Metrics.RecordUpdaterItem(ctx, "failed")
			logger.Warn("[updater] [%d/%d] ✗ %s: %v", i+1, len(items), item.MarketHashName, err)
		} else {
			report.Succeeded++
			price := pq.CurrentPrice
			ev.Price = &price
			u.opts.Metrics.RecordUpdaterItem(ctx, "succeeded")
			logger.Info("[updater] [%d/%d] ✓ %s | %.2f (volume %d)", i+1, len(items), item.MarketHashName, pq.CurrentPrice, pq.Volume)
		}
		u.publish(ev)
	}

	report.FinishedAt = time.Now().UTC()
	u.finish(report)
	logger.Info("[updater] run %s finished (ok:%d, failed:%d, skipped:%d, took:%v)",
		report.RunID, report.Succeeded, report.Failed, report.Skipped, report.Duration())
	return report, nil
}

func (u *Updater) pace(ctx context.Context, limiter *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// updateOne records one item, converting a panic into an error.
func (u *Updater) updateOne(ctx context.Context, item models.Item) (pq *tracker.PriceQuote, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		pq, err = u.recorder.RecordPrice(ctx, item.ID)
	})
	if r := pc.Recovered(); r != nil {
		return nil, errs.Wrap(errs.KindInternal, "panic while updating item", r.AsError())
	}
	if err == nil && pq == nil {
		return nil, errs.New(errs.KindInternal, "no quote returned")
	}
	return pq, err
}

func (u *Updater) finish(report *RunReport) {
	u.mu.Lock()
	u.stats.Runs++
	u.stats.ItemsSucceeded += int64(report.Succeeded)
	u.stats.ItemsFailed += int64(report.Failed)
	u.stats.ItemsSkipped += int64(report.Skipped)
	u.stats.LastRun = report
	u.mu.Unlock()

	u.publish(Event{Type: EventRunFinished, RunID: report.RunID, Total: report.Total, Report: report})
}

func (u *Updater) publish(ev Event) {
	if u.opts.Notifier == nil {
		return
	}
	ev.At = time.Now().UTC()
	u.opts.Notifier.Publish(ev)
}
