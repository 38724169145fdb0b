package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	AppURL        string `env:"APP_URL" default:"http://localhost:8080"`
	SessionSecret string `env:"SESSION_SECRET"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	VDIPoolSize        int    `env:"VDI_POOL_SIZE" default:"9"`
	VDIIDPrefix        string `env:"VDI_ID_PREFIX" default:"VDI"`
	SeedDefaultUsers   bool   `env:"SEED_DEFAULT_USERS" default:"true"`
	MaxChannelsPerUser int    `env:"MAX_CHANNELS_PER_USER" default:"10"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxWebSocketConnsPerIP  int     `env:"MAX_WEBSOCKET_CONNS_PER_IP" default:"100"`
	WebSocketConnectRate    float64 `env:"WEBSOCKET_CONNECT_RATE" default:"10"`
	WebSocketConnectBurst   int     `env:"WEBSOCKET_CONNECT_BURST" default:"20"`

	AuthRateLimit  float64 `env:"AUTH_RATE_LIMIT" default:"1"`
	AuthRateBurst  int     `env:"AUTH_RATE_BURST" default:"5"`
	StartupRetries int     `env:"STARTUP_RETRIES" default:"5"`

	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days
}

const minSessionSecretLen = 32

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes, got %d", minSessionSecretLen, len(cfg.SessionSecret))
	}

	if cfg.VDIPoolSize < 1 || cfg.VDIPoolSize > 99 {
		return fmt.Errorf("VDI_POOL_SIZE must be between 1 and 99, got %d", cfg.VDIPoolSize)
	}
	if cfg.VDIIDPrefix == "" {
		return errors.New("VDI_ID_PREFIX must not be empty")
	}
	if cfg.MaxChannelsPerUser < 1 {
		return fmt.Errorf("MAX_CHANNELS_PER_USER must be positive, got %d", cfg.MaxChannelsPerUser)
	}
	if cfg.MaxWebSocketConnections < 1 || cfg.MaxWebSocketConnsPerIP < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS and MAX_WEBSOCKET_CONNS_PER_IP must be positive")
	}
	if cfg.WebSocketConnectRate <= 0 || cfg.WebSocketConnectBurst < 1 {
		return errors.New("WEBSOCKET_CONNECT_RATE and WEBSOCKET_CONNECT_BURST must be positive")
	}
	if cfg.AuthRateLimit <= 0 || cfg.AuthRateBurst < 1 {
		return errors.New("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive")
	}
	if cfg.StartupRetries < 1 {
		return fmt.Errorf("STARTUP_RETRIES must be at least 1, got %d", cfg.StartupRetries)
	}
	if cfg.SessionMaxAge <= 0 {
		return errors.New("SESSION_MAX_AGE must be positive")
	}

	u, err := url.Parse(cfg.AppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_URL must be an absolute URL, got %q", cfg.AppURL)
	}

	return nil
}
