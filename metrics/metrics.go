package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var defaultMetrics *Metrics

type Metrics struct {
	clients          prometheus.Gauge
	parties          prometheus.Gauge
	subs             *prometheus.GaugeVec
	eventsPublished  *prometheus.CounterVec
	publishLatencies *prometheus.HistogramVec
}

// Registry registers the party hub collectors on a fresh registry and
// returns it. Record* calls are no-ops until this runs.
func Registry() *prometheus.Registry {
	defaultMetrics = &Metrics{}
	//new registry
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	defaultMetrics.clients = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "partyhub_clients_count",
			Help: "Number of clients currently connected",
		},
	)

	defaultMetrics.parties = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "partyhub_parties_count",
			Help: "Number of live parties in the registry",
		},
	)

	defaultMetrics.subs = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partyhub_subscriptions_count",
			Help: "Number of connections subscribed to a topic type",
		},
		[]string{"type"},
	)

	defaultMetrics.eventsPublished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partyhub_events_published_total",
			Help: "Events published per event name",
		},
		[]string{"event"},
	)

	defaultMetrics.publishLatencies =
		factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "partyhub_publish_latency_seconds",
				Help:    "Latency of publishing an event through a transport in seconds.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"transport"},
		)
	return registry
}

func RecordHubClientNew() {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.clients.Inc()
}

func RecordHubClientClose() {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.clients.Dec()
}

func RecordPartyCreated() {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.parties.Inc()
}

func RecordPartyDeleted() {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.parties.Dec()
}

func RecordHubSubscription(typ string) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.subs.WithLabelValues(typ).Inc()
}

func RecordHubUnsubscription(typ string) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.subs.WithLabelValues(typ).Dec()
}

func RecordEventPublished(event string) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.eventsPublished.WithLabelValues(event).Inc()
}

func RecordPublishLatency(transport string, startTime time.Time) {
	if defaultMetrics == nil {
		return
	}

	defaultMetrics.publishLatencies.WithLabelValues(transport).Observe(time.Since(startTime).Seconds())
}
