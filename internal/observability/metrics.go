package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solaralert"

// Metrics holds the Prometheus collectors for the alert engine.
type Metrics struct {
	PollCycles        *prometheus.CounterVec // labels: outcome={ok,error,skipped}
	PollCycleDuration prometheus.Histogram

	FeedErrors       *prometheus.CounterVec // labels: feed
	FeedObservations *prometheus.CounterVec // labels: feed

	EventsClassified *prometheus.CounterVec // labels: type, level
	EventsSuppressed *prometheus.CounterVec // labels: type

	Deliveries *prometheus.CounterVec // labels: channel, outcome={sent,failed}

	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,empty,error}
}

func newCollectors() *Metrics {
	return &Metrics{
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"outcome"}),
		PollCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of a complete poll cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Feed fetches that failed and yielded no observations.",
		}, []string{"feed"}),
		FeedObservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_observations_total",
			Help:      "Observations parsed from each feed.",
		}, []string{"feed"}),
		EventsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_classified_total",
			Help:      "Space-weather events produced by the classifier.",
		}, []string{"type", "level"}),
		EventsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_suppressed_total",
			Help:      "Events skipped by the duplicate filter.",
		}, []string{"type"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(
		m.PollCycles,
		m.PollCycleDuration,
		m.FeedErrors,
		m.FeedObservations,
		m.EventsClassified,
		m.EventsSuppressed,
		m.Deliveries,
		m.GeocodeRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newCollectors()
}
