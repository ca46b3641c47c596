package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirinyoku/tablego/internal/clock"
)

// Expirer is the queue operation the worker drives.
type Expirer interface {
	AutoExpire(ctx context.Context) (int64, error)
}

// Expiry closes out stale queue entries once at start and then at every
// local midnight of the clock's zone.
type Expiry struct {
	queue  Expirer
	clock  clock.Clock
	logger *slog.Logger
}

func NewExpiry(queue Expirer, clk clock.Clock, logger *slog.Logger) *Expiry {
	return &Expiry{
		queue:  queue,
		clock:  clk,
		logger: logger.With("component", "expiry_worker"),
	}
}

// Run blocks until ctx is done.
func (w *Expiry) Run(ctx context.Context) error {
	w.expire(ctx)

	for {
		// recomputed every round so DST shifts land on the real midnight
		timer := time.NewTimer(w.untilMidnight())

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			w.expire(ctx)
		}
	}
}

func (w *Expiry) expire(ctx context.Context) {
	n, err := w.queue.AutoExpire(ctx)
	if err != nil {
		w.logger.Error("auto expire failed", "error", err)
		return
	}
	w.logger.Info("auto expire done", "expired", n)
}

func (w *Expiry) untilMidnight() time.Duration {
	now := w.clock.Now()
	_, next := clock.DayWindow(now)

	// a second past midnight keeps the run on the new day
	d := next.Sub(now) + time.Second
	if d <= 0 {
		d = time.Second
	}
	return d
}
