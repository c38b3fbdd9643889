// Package archiver auto-archives threads with no activity inside the
// configured idle window. Sweeps run on a cron schedule and archive
// through the store's mutation path so versions and listings stay
// consistent.
package archiver

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// Options configures the sweep schedule and idle window.
type Options struct {
	Cron      string
	IdleAfter time.Duration
}

// Start launches the archiver scheduler if enabled config was given.
// Returns a cancel func that stops the scheduler.
func Start(ctx context.Context, st *store.Store, opts Options) (context.CancelFunc, error) {
	cronExpr := opts.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("archiver_invalid_cron", "cron", opts.Cron)
		return nil, fmt.Errorf("invalid archiver cron expression: %s", opts.Cron)
	}
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = 30 * 24 * time.Hour
	}

	logger.Info("archiver_enabled", "cron", cronExpr, "idle_after", opts.IdleAfter.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, st, cronExpr, opts.IdleAfter)
	return cancel, nil
}

// runScheduler sleeps until each next cron tick and sweeps.
func runScheduler(ctx context.Context, st *store.Store, cronExpr string, idleAfter time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("archiver_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("archiver_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			SweepOnce(st, idleAfter)
		case <-ctx.Done():
			logger.Info("archiver_scheduler_stopping")
			return
		}
	}
}

// SweepOnce archives every unarchived thread idle longer than idleAfter.
// Exposed for on-demand runs and tests.
func SweepOnce(st *store.Store, idleAfter time.Duration) int {
	cutoff := time.Now().UTC().Add(-idleAfter).UnixNano()
	ids := st.IdleThreads(cutoff)
	archived := 0
	t := true
	for _, id := range ids {
		if _, err := st.UpdateFlags(id, models.FlagPatch{IsArchived: &t}); err != nil {
			logger.Error("archiver_update_failed", "thread", id, "error", err)
			continue
		}
		archived++
	}
	logger.Info("archiver_sweep_done", "candidates", len(ids), "archived", archived)
	return archived
}
