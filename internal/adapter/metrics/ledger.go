package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ledger operation results.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultError    = "error"
)

type LedgerMetrics struct {
	Operations   *prometheus.CounterVec
	AssignedVDIs prometheus.Gauge
	PendingReqs  prometheus.Gauge
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations, by operation and result.",
		}, []string{"operation", "result"}),
		AssignedVDIs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "assigned_vdis",
			Help:      "Number of VDIs currently assigned.",
		}),
		PendingReqs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "pending_requests",
			Help:      "Number of requests awaiting approval or rejection.",
		}),
	}

	reg.MustRegister(m.Operations, m.AssignedVDIs, m.PendingReqs)
	return m
}
