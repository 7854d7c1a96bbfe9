package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"solaralert/internal/repository"
)

// RetentionWorker deletes raw feed snapshots older than the configured TTL.
type RetentionWorker struct {
	periodic
	snapshots repository.FeedSnapshotRepository
	ttl       time.Duration
}

func NewRetentionWorker(snapshots repository.FeedSnapshotRepository, ttl, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *RetentionWorker {
	w := &RetentionWorker{snapshots: snapshots, ttl: ttl}
	w.periodic = periodic{
		name:     "retention",
		interval: interval,
		timeout:  time.Minute,
		clock:    clock,
		logger:   logger,
		task:     w.sweep,
	}
	return w
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	cutoff := w.clock.Now().Add(-w.ttl)
	deleted, err := w.snapshots.DeleteOld(ctx, cutoff)
	if err != nil {
		w.logger.Error("retention worker: sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		w.logger.Info("retention worker: old feed snapshots deleted", "deleted", deleted, "cutoff", cutoff)
	}
}
