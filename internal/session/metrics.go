package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks WebSocket session activity. Nil receivers disable
// recording.
type Metrics struct {
	sessions     *prometheus.GaugeVec
	fanout       prometheus.Counter
	dropped      prometheus.Counter
	authFailures prometheus.Counter
}

// NewMetrics registers the session collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Connected WebSocket sessions by kind.",
		}, []string{"kind"}),
		fanout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_session_fanout_total",
			Help: "Server frames fanned out to sessions.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_session_frames_dropped_total",
			Help: "Server frames dropped because a session's buffer was full.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_session_auth_failures_total",
			Help: "Rejected guest key authentication attempts.",
		}),
	}
	reg.MustRegister(m.sessions, m.fanout, m.dropped, m.authFailures)
	return m
}

func (m *Metrics) sessionDelta(kind string, delta float64) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(kind).Add(delta)
}

func (m *Metrics) recordFanout() {
	if m == nil {
		return
	}
	m.fanout.Inc()
}

func (m *Metrics) recordDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) recordAuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}
