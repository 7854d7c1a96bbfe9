package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"solaralert/internal/models"
	"solaralert/internal/repository"
)

const cooldownKeyPrefix = "alert:cooldown:"

// DuplicateFilter suppresses an event type for a fixed window after an alert
// of that type was sent. The alert ledger is authoritative; the Redis claim
// only keeps two overlapping cycles from dispatching the same type.
type DuplicateFilter struct {
	alerts repository.AlertRepository
	cache  repository.CacheRepository
	window time.Duration
	logger *slog.Logger
}

func NewDuplicateFilter(alerts repository.AlertRepository, cache repository.CacheRepository, window time.Duration, logger *slog.Logger) *DuplicateFilter {
	return &DuplicateFilter{
		alerts: alerts,
		cache:  cache,
		window: window,
		logger: logger,
	}
}

func (f *DuplicateFilter) Window() time.Duration {
	return f.window
}

// Since returns the exclusive lower bound of the window ending at now.
func (f *DuplicateFilter) Since(now time.Time) time.Time {
	return now.Add(-f.window)
}

// IsSuppressed reports whether an alert of eventType was sent in (now-window, now].
func (f *DuplicateFilter) IsSuppressed(ctx context.Context, eventType models.EventType, now time.Time) (bool, error) {
	recent, err := f.alerts.FindRecentByType(ctx, eventType, f.Since(now))
	if err != nil {
		return false, fmt.Errorf("%w: find recent %s alert: %w", ErrStoreUnavailable, eventType, err)
	}
	return recent != nil && !recent.SentAt.After(now), nil
}

// Claim takes the per-type cooldown key. It returns false only when another
// cycle already holds it; cache errors fall back to the ledger check.
func (f *DuplicateFilter) Claim(ctx context.Context, eventType models.EventType, eventID string) bool {
	if f.cache == nil {
		return true
	}
	ok, err := f.cache.SetNX(ctx, cooldownKeyPrefix+string(eventType), eventID, f.window)
	if err != nil {
		f.logger.Warn("cooldown claim failed, relying on alert ledger",
			"type", eventType,
			"event_id", eventID,
			"error", err,
		)
		return true
	}
	return ok
}

// Release drops a claim whose event could not be persisted.
func (f *DuplicateFilter) Release(ctx context.Context, eventType models.EventType) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, cooldownKeyPrefix+string(eventType)); err != nil {
		f.logger.Warn("cooldown release failed", "type", eventType, "error", err)
	}
}
