package desk

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Metrics exposes the derived stats of the loaded tickets as gauges.
type Metrics struct {
	tickets *prometheus.GaugeVec
}

// NewMetrics registers the ticket gauges on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tickets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tkdesk_loaded_tickets",
				Help: "Loaded tickets per stats bucket.",
			},
			[]string{"bucket"},
		),
	}

	reg.MustRegister(m.tickets)

	return m
}

func (m *Metrics) observe(s ticket.Stats) {
	for bucket, n := range map[string]int{
		"total":         s.Total,
		"open":          s.Open,
		"resolved":      s.Resolved,
		"high_priority": s.HighPriority,
		"overdue":       s.Overdue,
		"due_today":     s.DueToday,
		"this_week":     s.ThisWeek,
		"this_month":    s.ThisMonth,
	} {
		m.tickets.WithLabelValues(bucket).Set(float64(n))
	}
}
