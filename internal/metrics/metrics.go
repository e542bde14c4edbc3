// Package metrics exposes the prometheus counters/histograms the relay
// cycle reports on completion, matching the metrics surface shape of
// kidoz-vulners-proxy-go/internal/metrics (one struct bundling the
// collectors, registered once, passed down by pointer, nil-safe so
// metrics stay optional).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors one relay process reports. A nil
// *Metrics disables recording entirely; every method is nil-safe.
type Metrics struct {
	CycleDuration    *prometheus.HistogramVec
	CycleOutcomes    *prometheus.CounterVec
	BodyBytesRelayed *prometheus.CounterVec
	ContinueOutcomes *prometheus.CounterVec
	BytePipeSessions prometheus.Counter
	ActiveCycles     prometheus.Gauge
}

// New registers and returns the relay's metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_cycle_duration_seconds",
			Help:    "Duration of a request/response relay cycle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"disposition"}),
		CycleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cycle_outcomes_total",
			Help: "Relay cycles by terminal disposition and error kind.",
		}, []string{"disposition", "kind"}),
		BodyBytesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_body_bytes_relayed_total",
			Help: "Body bytes relayed, by direction and framing.",
		}, []string{"direction", "framing"}),
		ContinueOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_continue_outcomes_total",
			Help: "Expect: 100-continue arbitration outcomes.",
		}, []string{"outcome"}),
		BytePipeSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_byte_pipe_sessions_total",
			Help: "Connections promoted to a raw byte pipe after a 101.",
		}),
		ActiveCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_cycles",
			Help: "Relay cycles currently in flight.",
		}),
	}
	reg.MustRegister(m.CycleDuration, m.CycleOutcomes, m.BodyBytesRelayed, m.ContinueOutcomes, m.BytePipeSessions, m.ActiveCycles)
	return m
}

// ObserveCycle records one completed cycle's duration and outcome.
func (m *Metrics) ObserveCycle(disposition, kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.WithLabelValues(disposition).Observe(took.Seconds())
	m.CycleOutcomes.WithLabelValues(disposition, kind).Inc()
}

func (m *Metrics) ObserveContinue(outcome string) {
	if m == nil {
		return
	}
	m.ContinueOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBodyBytes(direction, framing string, n int64) {
	if m == nil {
		return
	}
	m.BodyBytesRelayed.WithLabelValues(direction, framing).Add(float64(n))
}

func (m *Metrics) ObserveBytePipe() {
	if m == nil {
		return
	}
	m.BytePipeSessions.Inc()
}
