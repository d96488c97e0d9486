package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/observability"
	"github.com/saferide/ridepay/internal/service"
)

// ValidatorWorker runs the ledger invariant check on a schedule.
type ValidatorWorker struct {
	validator *service.LedgerValidator
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewValidatorWorker constructs a worker with a default hourly interval.
func NewValidatorWorker(validator *service.LedgerValidator) *ValidatorWorker {
	return &ValidatorWorker{
		validator: validator,
		interval:  time.Hour,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ValidatorWorker) WithInterval(interval time.Duration) *ValidatorWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and validates at the configured interval.
func (w *ValidatorWorker) Start(ctx context.Context) {
	zap.L().Info("ledger validator worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("ledger validator worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("ledger validator worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ValidatorWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ValidatorWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ValidatorWorker) runOnce(ctx context.Context) {
	if err := w.validator.Validate(ctx); err != nil {
		observability.IncrementWorkerRun("ledger_validator", "failed")
		zap.L().Error("ledger validation run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("ledger_validator", "success")
}
