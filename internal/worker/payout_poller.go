package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/observability"
	"github.com/saferide/ridepay/internal/service"
)

// PayoutPoller reconciles payouts whose gateway outcome never arrived by
// webhook. It backstops lost deliveries: anything still unsettled after the
// minimum age gets its status pulled from the gateway directly.
type PayoutPoller struct {
	payouts   *service.PayoutService
	interval  time.Duration
	minAge    time.Duration
	maxAge    time.Duration
	batchSize int32
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewPayoutPoller(payouts *service.PayoutService) *PayoutPoller {
	return &PayoutPoller{
		payouts:   payouts,
		interval:  5 * time.Minute,
		minAge:    30 * time.Minute,
		maxAge:    24 * time.Hour,
		batchSize: 50,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval sets how often the poller wakes up.
func (w *PayoutPoller) WithInterval(interval time.Duration) *PayoutPoller {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithAgeWindow sets the unsettled-age window a payout must fall in to be
// polled. Younger ones are still the webhook's business; older ones have
// aged out of reconciliation and need operator attention.
func (w *PayoutPoller) WithAgeWindow(minAge, maxAge time.Duration) *PayoutPoller {
	if minAge > 0 {
		w.minAge = minAge
	}
	if maxAge > w.minAge {
		w.maxAge = maxAge
	}
	return w
}

// WithBatchSize caps how many references one run reconciles.
func (w *PayoutPoller) WithBatchSize(size int32) *PayoutPoller {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and polls at the configured interval.
func (w *PayoutPoller) Start(ctx context.Context) {
	zap.L().Info("payout poller starting",
		zap.Duration("interval", w.interval),
		zap.Duration("min_age", w.minAge),
		zap.Duration("max_age", w.maxAge),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("payout poller context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("payout poller stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running poll loop.
func (w *PayoutPoller) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the poller in a goroutine and returns a stop function.
func (w *PayoutPoller) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RunOnce reconciles a single batch immediately. Useful for tests and manual
// triggering.
func (w *PayoutPoller) RunOnce(ctx context.Context) error {
	_, err := w.payouts.PollPending(ctx, w.minAge, w.maxAge, w.batchSize)
	return err
}

func (w *PayoutPoller) runOnce(ctx context.Context) {
	resolved, err := w.payouts.PollPending(ctx, w.minAge, w.maxAge, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("payout_poller", "failed")
		zap.L().Error("payout poll run failed", zap.Error(err))
		return
	}
	observability.AddPayoutsReconciled(resolved)
	observability.IncrementWorkerRun("payout_poller", "success")
}
