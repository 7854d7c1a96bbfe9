package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"solaralert/internal/service"
)

// AlertWorker drives the poll cycle: once at start, then every interval.
type AlertWorker struct {
	periodic
	service service.AlertService
}

func NewAlertWorker(svc service.AlertService, interval, cycleTimeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *AlertWorker {
	w := &AlertWorker{service: svc}
	w.periodic = periodic{
		name:     "alerts",
		interval: interval,
		timeout:  cycleTimeout,
		clock:    clock,
		logger:   logger,
		task:     w.poll,
	}
	return w
}

func (w *AlertWorker) poll(ctx context.Context) {
	result, err := w.service.RunPollCycle(ctx)
	switch {
	case errors.Is(err, service.ErrPollInProgress):
		w.logger.Info("alert worker: previous cycle still running, skipping tick")
	case err != nil:
		w.logger.Error("alert worker: poll cycle failed", "error", err)
	default:
		w.logger.Debug("alert worker: poll cycle done",
			"cycle_id", result.CycleID,
			"events", result.Events,
			"dispatched", len(result.Dispatched),
		)
	}
}
