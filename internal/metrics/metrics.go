// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the server's Prometheus collectors. A nil *Metrics is valid and
// records nothing, so tests and tools can skip instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	ActiveRooms      prometheus.Gauge
	OpenConnections  prometheus.Gauge
	MessagesReceived *prometheus.CounterVec
	MessageLatency   prometheus.Histogram
	RoundsResolved   *prometheus.CounterVec
	GamesFinished    prometheus.Counter
}

// New builds the collectors and registers them on a private registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of open websocket connections",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound websocket messages by event",
		}, []string{"event"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Inbound message handling latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		RoundsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_resolved_total",
			Help:      "Rounds ended, by outcome (correct, nobody)",
		}, []string{"outcome"}),
		GamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games played to the last round",
		}),
	}

	m.registry.MustRegister(
		m.ActiveRooms,
		m.OpenConnections,
		m.MessagesReceived,
		m.MessageLatency,
		m.RoundsResolved,
		m.GamesFinished,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetActiveRooms(n int) {
	if m == nil {
		return
	}
	m.ActiveRooms.Set(float64(n))
}

func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.OpenConnections.Inc()
}

func (m *Metrics) DecConnections() {
	if m == nil {
		return
	}
	m.OpenConnections.Dec()
}

// ObserveMessage counts one inbound message and how long it took to handle.
func (m *Metrics) ObserveMessage(event string, d time.Duration) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(event).Inc()
	m.MessageLatency.Observe(d.Seconds())
}

func (m *Metrics) RoundResolved(outcome string) {
	if m == nil {
		return
	}
	m.RoundsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GameFinished() {
	if m == nil {
		return
	}
	m.GamesFinished.Inc()
}
