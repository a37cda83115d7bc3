package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts batch items and runs. A nil *Metrics records nothing.
type Metrics struct {
	items    *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the batch collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tkdesk_batch_items_total",
				Help: "Tickets processed by batch operations, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tkdesk_batch_runs_total",
				Help: "Completed batch runs, by operation and result (ok or partial).",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tkdesk_batch_duration_seconds",
				Help:    "Wall time of batch runs.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(m.items, m.runs, m.duration)

	return m
}

func (m *Metrics) item(kind Kind, ok bool) {
	if m == nil {
		return
	}

	outcome := "success"
	if !ok {
		outcome = "failure"
	}

	m.items.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) run(kind Kind, ok bool, took time.Duration) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "partial"
	}

	m.runs.WithLabelValues(string(kind), result).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(took.Seconds())
}
