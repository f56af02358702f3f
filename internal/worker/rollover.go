// Package worker runs the periodic budget rollover sweep.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pocketbook/internal/logger"
)

// Roller rolls due budgets into their next window.
type Roller interface {
	RolloverDueBudgets(now time.Time) (int, error)
}

// InvariantChecker verifies registry-wide invariants.
type InvariantChecker interface {
	VerifyInvariants() error
}

// RolloverWorker calls RolloverDueBudgets on a fixed interval.
type RolloverWorker struct {
	budgets  Roller
	ledgers  InvariantChecker
	interval time.Duration
	now      func() time.Time
	log      *zap.SugaredLogger
}

// NewRolloverWorker creates a worker. ledgers may be nil.
func NewRolloverWorker(budgets Roller, ledgers InvariantChecker, interval time.Duration) *RolloverWorker {
	return &RolloverWorker{
		budgets:  budgets,
		ledgers:  ledgers,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Named("rollover"),
	}
}

// RunOnce performs a single sweep as of now.
func (w *RolloverWorker) RunOnce(now time.Time) (int, error) {
	count, err := w.budgets.RolloverDueBudgets(now)
	if err != nil {
		w.log.Errorw("Rollover sweep failed", "rolled", count, "error", err)
		return count, err
	}
	if count > 0 {
		w.log.Infow("Rollover sweep complete", "rolled", count)
	}

	if w.ledgers != nil {
		if err := w.ledgers.VerifyInvariants(); err != nil {
			w.log.Errorw("Ledger invariants violated after rollover", "error", err)
		}
	}
	return count, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (w *RolloverWorker) Run(ctx context.Context) {
	w.log.Infow("Rollover worker started", "interval", w.interval)
	_, _ = w.RunOnce(w.now())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Rollover worker stopped")
			return
		case <-ticker.C:
			_, _ = w.RunOnce(w.now())
		}
	}
}
