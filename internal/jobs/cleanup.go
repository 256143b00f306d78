package jobs

import (
	"context"
	"log/slog"
	"time"
)

// RequeueStale returns jobs stuck in running for longer than staleAfter to
// the queue. A worker that crashed mid-job leaves such rows behind.
func RequeueStale(ctx context.Context, store Store, staleAfter time.Duration, logger *slog.Logger) {
	n, err := store.RequeueStale(ctx, time.Now().Add(-staleAfter))
	if err != nil {
		logger.Error("failed to requeue stale jobs", "error", err)
		return
	}
	if n > 0 {
		logger.Warn("requeued stale jobs", "count", n)
	}
}
