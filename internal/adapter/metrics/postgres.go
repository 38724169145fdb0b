package metrics

import "github.com/prometheus/client_golang/prometheus"

type PostgresMetrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

func NewPostgresMetrics(reg prometheus.Registerer) *PostgresMetrics {
	m := &PostgresMetrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "postgres",
			Name:      "query_duration_seconds",
			Help:      "Duration of Postgres queries, by statement verb.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"statement"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "postgres",
			Name:      "query_errors_total",
			Help:      "Failed Postgres queries, by statement verb.",
		}, []string{"statement"}),
	}

	reg.MustRegister(m.QueryDuration, m.QueryErrors)
	return m
}
