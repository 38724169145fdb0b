package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/metrics"
)

// MetricsTracer records query latency and failures per statement verb.
type MetricsTracer struct {
	metrics *metrics.PostgresMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.PostgresMetrics) *MetricsTracer {
	return &MetricsTracer{metrics: m}
}

type queryContextKey struct{}

type queryContext struct {
	start     time.Time
	statement string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{start: time.Now(), statement: statementVerb(data.SQL)})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	t.metrics.QueryDuration.WithLabelValues(qctx.statement).Observe(time.Since(qctx.start).Seconds())
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		t.metrics.QueryErrors.WithLabelValues(qctx.statement).Inc()
	}
}

// statementVerb keeps label cardinality bounded: only the leading keyword survives.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	verb := strings.ToLower(fields[0])
	switch verb {
	case "select", "insert", "update", "delete", "with", "create", "drop", "alter":
		return verb
	default:
		return "other"
	}
}
