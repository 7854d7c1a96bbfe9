package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/observability"
)

// Target is one recipient of an event with the level and text they receive.
type Target struct {
	Subscriber models.Subscriber
	Level      models.Level
	Message    string
}

type latitude struct {
	value float64
	ok    bool
}

// Targeter selects recipients for events. A Targeter memoises geocoded
// latitudes, so it must live for a single poll cycle.
type Targeter struct {
	geocoder clients.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu        sync.Mutex
	latitudes map[string]latitude
}

func NewTargeter(geocoder clients.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *Targeter {
	return &Targeter{
		geocoder:  geocoder,
		logger:    logger,
		metrics:   metrics,
		latitudes: make(map[string]latitude),
	}
}

func (t *Targeter) Targets(ctx context.Context, event models.SpaceWeatherEvent, subscribers []models.Subscriber) []Target {
	targets := make([]Target, 0, len(subscribers))

	for _, sub := range subscribers {
		if !sub.Subscribed {
			continue
		}
		if !sub.PreferenceFor(event.Type) {
			continue
		}
		role := sub.EffectiveRole()
		if !event.RelevantTo(role) {
			continue
		}

		level := event.Level
		if event.Type == models.EventAuroral {
			lat, err := t.latitude(ctx, sub.Location)
			if err != nil {
				t.logger.Warn("auroral targeting denied",
					"event_id", event.ID,
					"phone", sub.PhoneNumber,
					"error", err,
				)
				continue
			}
			auroral, ok := ClassifyAuroral(event.Value, lat)
			if !ok {
				continue
			}
			level = auroral
		}

		targets = append(targets, Target{
			Subscriber: sub,
			Level:      level,
			Message:    TargetedMessage(event, level, role),
		})
	}
	return targets
}

func (t *Targeter) latitude(ctx context.Context, location string) (float64, error) {
	t.mu.Lock()
	cached, hit := t.latitudes[location]
	t.mu.Unlock()

	if !hit {
		cached = t.resolve(ctx, location)
		t.mu.Lock()
		t.latitudes[location] = cached
		t.mu.Unlock()
	}

	if !cached.ok {
		return 0, fmt.Errorf("%w: %q", ErrGeocodingFailed, location)
	}
	return cached.value, nil
}

func (t *Targeter) resolve(ctx context.Context, location string) latitude {
	if t.geocoder == nil {
		return latitude{}
	}

	lat, ok, err := t.geocoder.ResolveLatitude(ctx, location)
	switch {
	case err != nil:
		t.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		t.logger.Warn("geocoding request failed", "location", location, "error", err)
		return latitude{}
	case !ok:
		t.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return latitude{}
	default:
		t.metrics.GeocodeRequests.WithLabelValues("success").Inc()
		return latitude{value: lat, ok: true}
	}
}
