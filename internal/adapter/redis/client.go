package redis

import (
	"context"
	"fmt"

	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses a URL such as "redis://localhost:6379/0" and returns a client
// with the metrics and circuit breaker hooks installed. m may be nil.
func NewClient(redisURL string, m *metrics.RedisMetrics) (*goredis.Client, *CircuitBreakerHook, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	breaker := NewCircuitBreakerHook(m)
	if m != nil {
		rdb.AddHook(&MetricsHook{metrics: m})
	}
	rdb.AddHook(breaker)
	return rdb, breaker, nil
}

// Ping checks Redis connectivity for the readiness endpoint.
func Ping(rdb *goredis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}
