package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"nativize/internal/logging"
	"nativize/internal/queue"
)

// HeartbeatMonitor stamps claimed jobs as alive and fails jobs whose
// worker went quiet so they can be retried.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a monitor with the given cadence.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// Interval returns the heartbeat cadence.
func (h *HeartbeatMonitor) Interval() time.Duration {
	return h.interval
}

// StartLoop refreshes a job's heartbeat until the context is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := h.logger.With(
		logging.String(logging.FieldComponent, "workflow-heartbeat"),
		logging.String(logging.FieldJobID, jobID),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

// ReclaimStale fails in-flight jobs whose heartbeat expired. The
// failure is retriable; progress stays where the dead worker left it.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.timeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("failed stale jobs from dead workers", logging.Int64("count", reclaimed))
	}
	return nil
}
