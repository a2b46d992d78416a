package peer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks peer wire traffic in both directions. Nil receivers
// disable recording.
type Metrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers the peer collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_peer_ops_total",
			Help: "Peer operations by op, direction, and outcome.",
		}, []string{"op", "direction", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_peer_op_latency_seconds",
			Help:    "Latency of peer operations by op and direction.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"op", "direction"}),
	}
	reg.MustRegister(m.ops, m.latency)
	return m
}

func (m *Metrics) observe(op, direction string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ops.WithLabelValues(op, direction, outcome).Inc()
	m.latency.WithLabelValues(op, direction).Observe(time.Since(start).Seconds())
}
