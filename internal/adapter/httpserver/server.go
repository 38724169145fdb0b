package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/adapter/metrics"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/broadcast"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/config"
	"github.com/prometheus/client_golang/prometheus"
)

type appService interface {
	ListVDIs(ctx context.Context) ([]domain.VDIView, error)
	AssignVDI(ctx context.Context, vdiID string, userID int64) (domain.VDI, error)
	RequestVDI(ctx context.Context, vdiID string, userID int64) domain.VDIRequest
	ApproveRequest(ctx context.Context, requestID int64) (domain.VDIRequest, error)
	RejectRequest(ctx context.Context, requestID int64) (domain.VDIRequest, error)
	ListRequests(ctx context.Context) ([]domain.RequestView, error)
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
}

// authResolver maps a request's session cookie to a user and manages sessions.
type authResolver interface {
	Resolve(r *http.Request) (*domain.User, error)
	Login(w http.ResponseWriter, r *http.Request, userID int64) (*domain.Session, error)
	Logout(w http.ResponseWriter, r *http.Request) error
}

// channelRegistry is the notification fan-out as seen by the /ws handler.
type channelRegistry interface {
	Register(userID int64, ch broadcast.Channel) error
	Unregister(userID int64, ch broadcast.Channel)
	Stats() broadcast.Stats
	Stop()
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	app      appService
	resolver authResolver
	fanout   channelRegistry

	upgrader      websocket.Upgrader
	wsLimits      *connectionLimits
	registry      *prometheus.Registry
	httpMetrics   *metrics.HTTPMetrics
	healthChecks  []HealthCheck
	startTime     time.Time
	authRateLimit echo.MiddlewareFunc
}

func NewServer(cfg *config.Config, app appService, resolver authResolver, fanout channelRegistry, registry *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	clock := clockwork.NewRealClock()

	srv := &Server{
		echo:     e,
		config:   cfg,
		clock:    clock,
		app:      app,
		resolver: resolver,
		fanout:   fanout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		},
		wsLimits:      newConnectionLimits(clock, cfg.MaxWebSocketConnections, cfg.MaxWebSocketConnsPerIP, cfg.WebSocketConnectRate, cfg.WebSocketConnectBurst),
		registry:      registry,
		httpMetrics:   metrics.NewHTTPMetrics(registry),
		healthChecks:  healthChecks,
		startTime:     time.Now(),
		authRateLimit: newRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and then closes
// every real-time channel.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.fanout.Stop()
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests and embedding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
