package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks delivery queue activity. A nil *Metrics disables
// recording, which keeps tests free of registry setup.
type Metrics struct {
	depth      prometheus.Gauge
	enqueued   prometheus.Counter
	delivered  prometheus.Counter
	sweepRuns  prometheus.Counter
	sweepFails prometheus.Counter
}

// NewMetrics registers the queue collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_delivery_queue_depth",
			Help: "Messages currently awaiting redelivery.",
		}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_delivery_queue_enqueued_total",
			Help: "Messages added to the delivery queue.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_delivery_queue_delivered_total",
			Help: "Queued messages removed after successful redelivery.",
		}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_delivery_sweep_runs_total",
			Help: "Completed delivery sweep passes.",
		}),
		sweepFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_delivery_sweep_failures_total",
			Help: "Redelivery attempts that failed during a sweep.",
		}),
	}
	reg.MustRegister(m.depth, m.enqueued, m.delivered, m.sweepRuns, m.sweepFails)
	return m
}

func (m *Metrics) setDepth(n int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(n))
}

func (m *Metrics) recordEnqueue() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

func (m *Metrics) recordDelivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

func (m *Metrics) recordSweep() {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
}

func (m *Metrics) recordSweepFailure() {
	if m == nil {
		return
	}
	m.sweepFails.Inc()
}
