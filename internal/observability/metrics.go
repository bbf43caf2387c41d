package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "gofish"

// CountSource reports live object counts for the gauges.
type CountSource interface {
	Rooms() int
	Sessions() int
	Connections() int
}

// Metrics holds the Prometheus collectors for the server.
type Metrics struct {
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	trollEvents    *prometheus.CounterVec
	outboxDrops    prometheus.Counter
	swept          prometheus.Counter
}

// NewMetrics registers the collectors on reg. Gauges read from src at scrape time.
//
// Precondition: reg and src must be non-nil; the collectors must not already be registered on reg.
func NewMetrics(reg prometheus.Registerer, src CountSource) *Metrics {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "rooms",
		Help:      "Number of live rooms.",
	}, func() float64 { return float64(src.Rooms()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "sessions",
		Help:      "Number of known sessions.",
	}, func() float64 { return float64(src.Sessions()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "connections",
		Help:      "Number of open websocket connections.",
	}, func() float64 { return float64(src.Connections()) })

	return &Metrics{
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "actions_total",
			Help:      "Inbound actions by name and result code.",
		}, []string{"action", "result"}),
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "action_duration_seconds",
			Help:      "Time spent handling an inbound action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		trollEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "troll_events_total",
			Help:      "Troller events fired, by kind.",
		}, []string{"kind"}),
		outboxDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "outbox_drops_total",
			Help:      "Outbound messages dropped because a connection's outbox was full or closed.",
		}),
		swept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rooms_swept_total",
			Help:      "Abandoned rooms removed by the sweeper.",
		}),
	}
}

// ObserveAction records one handled action.
func (m *Metrics) ObserveAction(action, result string, elapsed time.Duration) {
	m.actions.WithLabelValues(action, result).Inc()
	m.actionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// TrollEvent counts one troller firing.
func (m *Metrics) TrollEvent(kind string) {
	m.trollEvents.WithLabelValues(kind).Inc()
}

// OutboxDrop counts one dropped outbound message.
func (m *Metrics) OutboxDrop() {
	m.outboxDrops.Inc()
}

// RoomsSwept counts rooms removed by the sweeper.
func (m *Metrics) RoomsSwept(n int) {
	m.swept.Add(float64(n))
}
