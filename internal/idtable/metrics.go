package idtable

import "github.com/prometheus/client_golang/prometheus"

const (
	resultAssigned = "assigned"
	resultMemoized = "memoized"
	resultError    = "error"
)

type metrics struct {
	allocations *prometheus.CounterVec
	retirements *prometheus.CounterVec
}

// newMetrics builds the table counters. A nil registerer leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deid_allocations_total",
			Help: "Integer lookups by category and result (assigned, memoized, error).",
		}, []string{"category", "result"}),
		retirements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deid_skip_ranges_retired_total",
			Help: "Skip ranges retired after an allocation passed them.",
		}, []string{"category"}),
	}
	if reg != nil {
		reg.MustRegister(m.allocations, m.retirements)
	}
	return m
}

func (m *metrics) allocation(category, result string) {
	m.allocations.WithLabelValues(category, result).Inc()
}

func (m *metrics) retired(category string) {
	m.retirements.WithLabelValues(category).Inc()
}
