package admission

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the admission gate.
type Metrics struct {
	// Decision outcomes
	decisions       *prometheus.CounterVec
	clientDecisions *prometheus.CounterVec

	// Registry population
	activeClients prometheus.Gauge
	registryFull  prometheus.Counter
	evictions     prometheus.Counter

	// Decision latency
	decisionDuration prometheus.Histogram
}

// NewMetrics creates a Metrics instance registered with reg. Passing nil
// registers with the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_admission_decisions_total",
				Help: "Total number of admission decisions by result",
			},
			[]string{"result"},
		),

		clientDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_admission_client_decisions_total",
				Help: "Total number of admission decisions per client",
			},
			[]string{"client_id", "result"},
		),

		activeClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "turnstile_admission_active_clients",
				Help: "Current number of clients with a live quota cell",
			},
		),

		registryFull: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_admission_registry_full_total",
				Help: "Requests rejected because the client registry was at capacity",
			},
		),

		evictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_admission_idle_evictions_total",
				Help: "Quota cells evicted by the idle sweeper",
			},
		),

		decisionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "turnstile_admission_decision_duration_seconds",
				Help:    "Duration of admission decisions in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// ObserveDecision records one admission decision.
func (m *Metrics) ObserveDecision(clientID string, allowed bool, elapsed time.Duration) {
	result := "accepted"
	if !allowed {
		result = "rejected"
	}
	m.decisions.WithLabelValues(result).Inc()
	m.clientDecisions.WithLabelValues(clientID, result).Inc()
	m.decisionDuration.Observe(elapsed.Seconds())
}

// SetActiveClients updates the active client gauge.
func (m *Metrics) SetActiveClients(n int64) {
	m.activeClients.Set(float64(n))
}

// IncRegistryFull records a rejection caused by the population cap.
func (m *Metrics) IncRegistryFull() {
	m.registryFull.Inc()
}

// AddEvictions records cells removed by the idle sweeper.
func (m *Metrics) AddEvictions(n int) {
	m.evictions.Add(float64(n))
}
