package bench

import "github.com/prometheus/client_golang/prometheus"

// metrics mirrors every recorded evaluator invocation as Prometheus series,
// registered once against the registerer passed to NewStore.
type metrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bmad_assist",
			Subsystem: "bench",
			Name:      "evaluator_duration_seconds",
			Help:      "Duration of evaluator invocations recorded by the benchmarking store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"evaluator", "provider", "phase"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bmad_assist",
			Subsystem: "bench",
			Name:      "evaluator_outcomes_total",
			Help:      "Count of evaluator invocations by success/failure.",
		}, []string{"evaluator", "provider", "phase", "outcome"}),
	}
	reg.MustRegister(m.duration, m.outcomes)
	return m
}

func (m *metrics) observe(rec Record) {
	m.duration.WithLabelValues(rec.Evaluator, rec.Provider, rec.Phase).Observe(rec.Duration.Seconds())
	outcome := "success"
	if !rec.Success {
		outcome = "failure"
	}
	m.outcomes.WithLabelValues(rec.Evaluator, rec.Provider, rec.Phase, outcome).Inc()
}
