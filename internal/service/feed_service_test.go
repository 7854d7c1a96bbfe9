package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/observability"
)

type fakeSWPC struct {
	payloads map[models.FeedKind]*clients.FeedPayload
	errs     map[models.FeedKind]error
}

func (f *fakeSWPC) get(kind models.FeedKind) (*clients.FeedPayload, error) {
	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	if p, ok := f.payloads[kind]; ok {
		return p, nil
	}
	return &clients.FeedPayload{Feed: kind}, nil
}

func (f *fakeSWPC) FetchKpIndex(context.Context) (*clients.FeedPayload, error) {
	return f.get(models.FeedKpIndex)
}

func (f *fakeSWPC) FetchRadioFlux(context.Context) (*clients.FeedPayload, error) {
	return f.get(models.FeedRadioFlux)
}

func (f *fakeSWPC) FetchXRayFlux(context.Context) (*clients.FeedPayload, error) {
	return f.get(models.FeedXRayFlux)
}

func (f *fakeSWPC) FetchProtonFlux(context.Context) (*clients.FeedPayload, error) {
	return f.get(models.FeedProtonFlux)
}

type fakeDONKI struct {
	payload *clients.FeedPayload
	err     error
}

func (f *fakeDONKI) FetchCMEAnalysis(context.Context) (*clients.FeedPayload, error) {
	return f.payload, f.err
}

type fakeSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []models.FeedSnapshot
	err       error
}

func (r *fakeSnapshotRepo) Create(_ context.Context, s *models.FeedSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snapshots = append(r.snapshots, *s)
	return nil
}

func (r *fakeSnapshotRepo) GetLatest(context.Context, models.FeedKind) (*models.FeedSnapshot, error) {
	return nil, nil
}

func (r *fakeSnapshotRepo) DeleteOld(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func TestFetchObservations(t *testing.T) {
	kpRaw := json.RawMessage(`[{"time_tag":"2026-03-01T11:59:00","kp_index":5}]`)
	swpc := &fakeSWPC{
		payloads: map[models.FeedKind]*clients.FeedPayload{
			models.FeedKpIndex: {
				Feed:         models.FeedKpIndex,
				Raw:          kpRaw,
				Observations: []models.Observation{obs(models.FeedKpIndex, 5, "2026-03-01T11:59:00")},
				Skipped:      2,
			},
		},
		errs: map[models.FeedKind]error{models.FeedXRayFlux: errBoom},
	}
	donki := &fakeDONKI{payload: &clients.FeedPayload{
		Feed:         models.FeedCMEAnalysis,
		Raw:          json.RawMessage(`[{"speed":1200,"time21_5":"2026-03-01T06:00Z"}]`),
		Observations: []models.Observation{obs(models.FeedCMEAnalysis, 1200, "2026-03-01T06:00Z")},
	}}
	snapshots := &fakeSnapshotRepo{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()

	svc := NewFeedService(swpc, donki, snapshots, clock, discardLogger(), metrics)
	result := svc.FetchObservations(context.Background())

	assert.Len(t, result[models.FeedKpIndex], 1)
	assert.Len(t, result[models.FeedCMEAnalysis], 1)
	assert.Empty(t, result[models.FeedXRayFlux])
	assert.Empty(t, result[models.FeedRadioFlux])
	assert.Len(t, result, len(models.FeedKinds))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedErrors.WithLabelValues(string(models.FeedXRayFlux))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedObservations.WithLabelValues(string(models.FeedKpIndex))))

	require.Len(t, snapshots.snapshots, 2)
	for _, s := range snapshots.snapshots {
		assert.Equal(t, clock.Now(), s.FetchedAt)
		assert.Equal(t, 1, s.Entries)
		if s.Source == models.FeedKpIndex {
			assert.JSONEq(t, string(kpRaw), string(s.Payload))
		}
	}
}

func TestFetchObservations_SnapshotFailureIsContained(t *testing.T) {
	swpc := &fakeSWPC{payloads: map[models.FeedKind]*clients.FeedPayload{
		models.FeedProtonFlux: {
			Feed:         models.FeedProtonFlux,
			Raw:          json.RawMessage(`[]`),
			Observations: []models.Observation{obs(models.FeedProtonFlux, 12, "t")},
		},
	}}
	svc := NewFeedService(swpc, &fakeDONKI{err: errBoom}, &fakeSnapshotRepo{err: errBoom},
		clockwork.NewFakeClock(), discardLogger(), observability.NewMetricsForTesting())

	result := svc.FetchObservations(context.Background())
	assert.Len(t, result[models.FeedProtonFlux], 1)
	assert.Empty(t, result[models.FeedCMEAnalysis])
}
