package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/observability"
	"solaralert/internal/repository"
)

const pollLockKey = "alert:poll:lock"

// CycleResult summarises one poll cycle.
type CycleResult struct {
	CycleID      string                  `json:"cycle_id"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
	Observations map[models.FeedKind]int `json:"observations"`
	Events       int                     `json:"events"`
	Suppressed   []string                `json:"suppressed"`
	Dispatched   []*DispatchResult       `json:"dispatched"`
}

type AlertService interface {
	RunPollCycle(ctx context.Context) (*CycleResult, error)
	Broadcast(ctx context.Context, message string) (*DispatchResult, error)
	GetHistory(ctx context.Context, phone string) ([]models.Alert, error)
	GetRecent(ctx context.Context, limit int) ([]models.Alert, error)
}

type alertService struct {
	feeds       FeedService
	subscribers repository.SubscriberRepository
	alerts      repository.AlertRepository
	cache       repository.CacheRepository
	filter      *DuplicateFilter
	dispatcher  *Dispatcher
	geocoder    clients.Geocoder
	lockTTL     time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	running atomic.Bool
}

type AlertServiceDeps struct {
	Feeds       FeedService
	Subscribers repository.SubscriberRepository
	Alerts      repository.AlertRepository
	Cache       repository.CacheRepository
	Filter      *DuplicateFilter
	Dispatcher  *Dispatcher
	Geocoder    clients.Geocoder
	LockTTL     time.Duration
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

func NewAlertService(deps AlertServiceDeps) AlertService {
	return &alertService{
		feeds:       deps.Feeds,
		subscribers: deps.Subscribers,
		alerts:      deps.Alerts,
		cache:       deps.Cache,
		filter:      deps.Filter,
		dispatcher:  deps.Dispatcher,
		geocoder:    deps.Geocoder,
		lockTTL:     deps.LockTTL,
		clock:       deps.Clock,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

// RunPollCycle fetches all feeds, classifies observations and dispatches
// every event that is not suppressed. Only ErrPollInProgress and
// ErrStoreUnavailable are returned; everything else is contained and logged.
func (s *alertService) RunPollCycle(ctx context.Context) (*CycleResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.PollCycles.WithLabelValues("skipped").Inc()
		return nil, ErrPollInProgress
	}
	defer s.running.Store(false)

	result := &CycleResult{
		CycleID:      uuid.NewString(),
		StartedAt:    s.clock.Now().UTC(),
		Observations: make(map[models.FeedKind]int),
	}
	log := s.logger.With("cycle_id", result.CycleID)

	if !s.acquirePollLock(ctx, log, result.CycleID) {
		s.metrics.PollCycles.WithLabelValues("skipped").Inc()
		return nil, ErrPollInProgress
	}
	defer s.releasePollLock(log, result.CycleID)

	err := s.runCycle(ctx, log, result)

	result.FinishedAt = s.clock.Now().UTC()
	s.metrics.PollCycleDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	if err != nil {
		s.metrics.PollCycles.WithLabelValues("error").Inc()
		log.Error("poll cycle aborted", "error", err)
		return result, err
	}

	s.metrics.PollCycles.WithLabelValues("ok").Inc()
	log.Info("poll cycle finished",
		"events", result.Events,
		"suppressed", len(result.Suppressed),
		"dispatched", len(result.Dispatched),
	)
	return result, nil
}

func (s *alertService) runCycle(ctx context.Context, log *slog.Logger, result *CycleResult) error {
	observations := s.feeds.FetchObservations(ctx)
	for kind, list := range observations {
		result.Observations[kind] = len(list)
	}

	events := Classify(observations)
	orderForDispatch(events)
	result.Events = len(events)
	for _, ev := range events {
		s.metrics.EventsClassified.WithLabelValues(string(ev.Type), string(ev.Level)).Inc()
	}

	if len(events) == 0 {
		log.Info("no significant space weather events found")
		return nil
	}

	subscribers, err := s.subscribers.FindSubscribed(ctx)
	if err != nil {
		return fmt.Errorf("%w: load subscribers: %w", ErrStoreUnavailable, err)
	}

	targeter := NewTargeter(s.geocoder, log, s.metrics)

	for _, event := range events {
		evLog := log.With("event_id", event.ID, "type", event.Type, "level", event.Level)

		suppressed, err := s.filter.IsSuppressed(ctx, event.Type, s.clock.Now())
		if err != nil {
			return err
		}
		if suppressed || !s.filter.Claim(ctx, event.Type, event.ID) {
			s.metrics.EventsSuppressed.WithLabelValues(string(event.Type)).Inc()
			result.Suppressed = append(result.Suppressed, event.ID)
			evLog.Info("duplicate alert suppressed")
			continue
		}

		targets := targeter.Targets(ctx, event, subscribers)

		dispatched, err := s.dispatcher.Dispatch(ctx, event, targets)
		if err != nil {
			s.filter.Release(context.WithoutCancel(ctx), event.Type)
			return err
		}
		result.Dispatched = append(result.Dispatched, dispatched)
		evLog.Info("event dispatched",
			"recipients", len(targets),
			"sent", dispatched.Sent,
			"failed", dispatched.Failed,
			"alert_id", dispatched.AlertID,
		)
	}
	return nil
}

// orderForDispatch puts the most severe and newest event of each type first,
// so it is the one that opens the suppression window.
func orderForDispatch(events []models.SpaceWeatherEvent) {
	typeOrder := make(map[models.EventType]int, len(models.EventTypes))
	for i, t := range models.EventTypes {
		typeOrder[t] = i
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Type != b.Type {
			return typeOrder[a.Type] < typeOrder[b.Type]
		}
		if a.Level.Rank() != b.Level.Rank() {
			return a.Level.Rank() > b.Level.Rank()
		}
		return a.IssuedAt > b.IssuedAt
	})
}

func (s *alertService) acquirePollLock(ctx context.Context, log *slog.Logger, cycleID string) bool {
	if s.cache == nil || s.lockTTL <= 0 {
		return true
	}
	ok, err := s.cache.SetNX(ctx, pollLockKey, cycleID, s.lockTTL)
	if err != nil {
		log.Warn("poll lock unavailable, continuing without it", "error", err)
		return true
	}
	if !ok {
		log.Info("poll cycle skipped, another instance holds the lock")
	}
	return ok
}

func (s *alertService) releasePollLock(log *slog.Logger, cycleID string) {
	if s.cache == nil || s.lockTTL <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	holder, err := s.cache.Get(ctx, pollLockKey)
	if err != nil || holder != cycleID {
		return
	}
	if err := s.cache.Delete(ctx, pollLockKey); err != nil {
		log.Warn("poll lock release failed", "error", err)
	}
}

func (s *alertService) Broadcast(ctx context.Context, message string) (*DispatchResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	subscribers, err := s.subscribers.FindSubscribed(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load subscribers: %w", ErrStoreUnavailable, err)
	}

	result, err := s.dispatcher.Broadcast(ctx, message, subscribers)
	if err != nil {
		return result, err
	}
	s.logger.Info("manual alert sent", "recipients", len(subscribers), "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// GetHistory returns the ten newest alerts for a subscriber's phone number.
func (s *alertService) GetHistory(ctx context.Context, phone string) ([]models.Alert, error) {
	sub, err := s.subscribers.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []models.Alert{}, nil
		}
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	alerts, err := s.alerts.FindByUser(ctx, sub.ID, sub.PhoneNumber, 10)
	if err != nil {
		return nil, fmt.Errorf("find alerts: %w", err)
	}
	return alerts, nil
}

func (s *alertService) GetRecent(ctx context.Context, limit int) ([]models.Alert, error) {
	return s.alerts.FindLatest(ctx, limit)
}
