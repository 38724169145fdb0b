package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatementVerb(t *testing.T) {
	tests := map[string]string{
		"SELECT id FROM users":        "select",
		"\n\tinsert into users ...":   "insert",
		"":                            "unknown",
		"SELECT pg_advisory_lock($1)": "select",
		"LISTEN something":            "other",
	}
	for sql, want := range tests {
		assert.Equal(t, want, statementVerb(sql), sql)
	}
}

func TestMetricsTracer(t *testing.T) {
	m := metrics.NewPostgresMetrics(prometheus.NewRegistry())
	tracer := NewMetricsTracer(m)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "INSERT INTO users"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("duplicate key")})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: pgx.ErrNoRows})

	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
	assert.InDelta(t, 1, testutil.ToFloat64(m.QueryErrors.WithLabelValues("insert")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueryErrors), "no-rows is not an error")
}
