package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/observability"
	"solaralert/internal/repository"
)

type FeedService interface {
	// FetchObservations fetches every feed concurrently. A failing feed is
	// logged and contributes no observations.
	FetchObservations(ctx context.Context) map[models.FeedKind][]models.Observation
}

type feedService struct {
	fetchers  map[models.FeedKind]func(context.Context) (*clients.FeedPayload, error)
	snapshots repository.FeedSnapshotRepository
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewFeedService(
	swpc clients.SWPCClient,
	donki clients.DONKIClient,
	snapshots repository.FeedSnapshotRepository,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) FeedService {
	return &feedService{
		fetchers: map[models.FeedKind]func(context.Context) (*clients.FeedPayload, error){
			models.FeedKpIndex:     swpc.FetchKpIndex,
			models.FeedRadioFlux:   swpc.FetchRadioFlux,
			models.FeedXRayFlux:    swpc.FetchXRayFlux,
			models.FeedCMEAnalysis: donki.FetchCMEAnalysis,
			models.FeedProtonFlux:  swpc.FetchProtonFlux,
		},
		snapshots: snapshots,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *feedService) FetchObservations(ctx context.Context) map[models.FeedKind][]models.Observation {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = make(map[models.FeedKind][]models.Observation, len(s.fetchers))
	)

	for _, kind := range models.FeedKinds {
		fetch, ok := s.fetchers[kind]
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			observations := s.fetchOne(ctx, kind, fetch)
			mu.Lock()
			result[kind] = observations
			mu.Unlock()
		}()
	}
	wg.Wait()

	return result
}

func (s *feedService) fetchOne(ctx context.Context, kind models.FeedKind, fetch func(context.Context) (*clients.FeedPayload, error)) []models.Observation {
	payload, err := fetch(ctx)
	if err != nil {
		s.metrics.FeedErrors.WithLabelValues(string(kind)).Inc()
		s.logger.Warn("feed fetch failed",
			"feed", kind,
			"error", fmt.Errorf("%w: %w", ErrFeedUnavailable, err),
		)
		return nil
	}

	if payload.Skipped > 0 {
		s.logger.Debug("skipped feed entries",
			"feed", kind,
			"skipped", payload.Skipped,
			"error", ErrMalformedObservation,
		)
	}
	s.metrics.FeedObservations.WithLabelValues(string(kind)).Add(float64(len(payload.Observations)))

	s.storeSnapshot(ctx, payload)
	return payload.Observations
}

func (s *feedService) storeSnapshot(ctx context.Context, payload *clients.FeedPayload) {
	if s.snapshots == nil || len(payload.Raw) == 0 {
		return
	}
	snapshot := &models.FeedSnapshot{
		Source:    payload.Feed,
		FetchedAt: s.clock.Now().UTC(),
		Entries:   len(payload.Observations),
		Payload:   datatypes.JSON(payload.Raw),
	}
	if err := s.snapshots.Create(ctx, snapshot); err != nil {
		s.logger.Warn("feed snapshot not stored", "feed", payload.Feed, "error", err)
	}
}
