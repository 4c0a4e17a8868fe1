// Package metrics exposes relay counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meet"

// Metrics is nil-safe: every method is a no-op on a nil receiver so the
// registry can run without instrumentation in tests.
type Metrics struct {
	rooms        prometheus.Gauge
	members      prometheus.Gauge
	relayed      *prometheus.CounterVec
	sendFailures prometheus.Counter
	sessions     *prometheus.CounterVec
	rateLimited  prometheus.Counter

	gatherer prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms with at least one member.",
		}),
		members: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members",
			Help:      "Connections currently joined to a room.",
		}),
		relayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Inbound messages relayed to a room, by envelope type.",
		}, []string{"type"}),
		sendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Deliveries that failed and evicted the recipient.",
		}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Finished connection sessions, by reason.",
		}, []string{"reason"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rate_limited_total",
			Help:      "Inbound messages dropped by the per-connection rate limit.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.rooms.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.rooms.Dec()
	}
}

func (m *Metrics) MemberJoined() {
	if m != nil {
		m.members.Inc()
	}
}

func (m *Metrics) MemberLeft() {
	if m != nil {
		m.members.Dec()
	}
}

// Relayed counts one relayed message. Unknown types share the "other"
// label to keep cardinality bounded.
func (m *Metrics) Relayed(typ string, known bool) {
	if m == nil {
		return
	}
	if !known {
		typ = "other"
	}
	m.relayed.WithLabelValues(typ).Inc()
}

func (m *Metrics) SendFailed() {
	if m != nil {
		m.sendFailures.Inc()
	}
}

func (m *Metrics) SessionEnded(reason string) {
	if m != nil {
		m.sessions.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

// Handler exposes the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
