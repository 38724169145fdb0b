package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/httpserver"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/metrics"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/postgres"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/redis"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/app"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/broadcast"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/identity"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/ledger"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/config"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/logging"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/retry"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/version"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	startupTimeout  = time.Minute
	shutdownTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logging.Init(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	clock := clockwork.NewRealClock()
	registry := metrics.NewRegistry()
	var healthChecks []httpserver.HealthCheck

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	var users domain.UserRepository = identity.NewMemoryRepository(clock)
	if cfg.DatabaseURL != "" {
		pool, err := setupDB(startCtx, cfg, postgres.NewMetricsTracer(metrics.NewPostgresMetrics(registry)))
		if err != nil {
			return err
		}
		defer pool.Close()
		users = postgres.NewUserRepo(pool)
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "postgres", Check: postgres.Ping(pool)})
	} else {
		slog.Warn("DATABASE_URL not set, users are kept in memory")
	}

	identitySvc := identity.NewService(users)
	if cfg.SeedDefaultUsers {
		created, err := identitySvc.Seed(startCtx, identity.DefaultAccounts)
		if err != nil {
			return fmt.Errorf("failed to seed default accounts: %w", err)
		}
		slog.Info("Default accounts ensured", "created", created)
	}

	var sessions domain.SessionStore = session.NewMemoryStore(clock)
	if cfg.RedisURL != "" {
		rdb, err := setupRedis(startCtx, cfg, registry)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		sessions = redis.NewSessionStore(rdb, clock)
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "redis", Check: redis.Ping(rdb)})
	} else {
		slog.Warn("REDIS_URL not set, sessions are kept in memory")
	}

	vdiLedger := ledger.New(ledger.PoolIDs(cfg.VDIIDPrefix, cfg.VDIPoolSize), clock)
	broadcaster := broadcast.NewBroadcaster(vdiLedger, identitySvc, metrics.NewFanoutMetrics(registry), clock, cfg.MaxChannelsPerUser)
	appSvc := app.NewService(vdiLedger, identitySvc, broadcaster, metrics.NewLedgerMetrics(registry))

	cookies := session.NewCookieStore([]byte(cfg.SessionSecret), cfg.SessionMaxAge, !cfg.IsDevelopment())
	resolver := session.NewResolver(cookies, sessions, identitySvc, cfg.SessionMaxAge)

	srv := httpserver.NewServer(cfg, appSvc, resolver, broadcaster, registry, healthChecks)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutdown signal received, cleaning up...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func startupPolicy(cfg *config.Config, target string) retry.Policy {
	return retry.Startup(cfg.StartupRetries, func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Startup dependency not ready, retrying", "target", target, "attempt", attempt, "backoff", backoff, "error", err)
	})
}

func setupDB(ctx context.Context, cfg *config.Config, tracer pgx.QueryTracer) (*pgxpool.Pool, error) {
	pool, err := retry.Do(ctx, startupPolicy(cfg, "postgres"), retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

func setupRedis(ctx context.Context, cfg *config.Config, registry prometheus.Registerer) (*goredis.Client, error) {
	rdb, _, err := redis.NewClient(cfg.RedisURL, metrics.NewRedisMetrics(registry))
	if err != nil {
		return nil, err
	}

	if err := retry.DoVoid(ctx, startupPolicy(cfg, "redis"), retry.Transient, redis.Ping(rdb)); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("Redis connected")
	return rdb, nil
}
