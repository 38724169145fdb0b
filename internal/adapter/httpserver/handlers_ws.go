package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/broadcast"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/session"
)

func (s *Server) registerWebSocketRoutes() {
	s.echo.GET("/ws", s.handleWebSocket)
}

// handleWebSocket upgrades the connection and subscribes it for the session's
// user. A connection without a resolvable session stays open but never
// receives pushes.
func (s *Server) handleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()

	ip := c.RealIP()
	if ok, reason := s.wsLimits.acquire(ip); !ok {
		s.httpMetrics.WebSocketRejections.WithLabelValues(string(reason)).Inc()
		slog.WarnContext(ctx, "WebSocket connection refused", "ip", ip, "reason", reason)
		status := http.StatusServiceUnavailable
		if reason == limitReasonRate {
			status = http.StatusTooManyRequests
		}
		return echo.NewHTTPError(status, "too many connections")
	}
	defer s.wsLimits.release(ip)
	s.httpMetrics.WebSocketConnections.Inc()
	defer s.httpMetrics.WebSocketConnections.Dec()

	user, resolveErr := s.resolver.Resolve(c.Request())

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.DebugContext(ctx, "WebSocket upgrade failed", "error", err)
		return nil
	}
	ch := broadcast.NewWebSocketChannel(conn, s.clock)

	if resolveErr != nil {
		if !errors.Is(resolveErr, session.ErrUnauthenticated) {
			slog.WarnContext(ctx, "WebSocket session lookup failed", "error", resolveErr)
		}
		_ = ch.ReadPump()
		ch.Close(websocket.CloseNormalClosure, "")
		return nil
	}

	if err := s.fanout.Register(user.ID, ch); err != nil {
		code := websocket.CloseTryAgainLater
		if errors.Is(err, broadcast.ErrTooManyChannels) {
			code = websocket.ClosePolicyViolation
		}
		slog.WarnContext(ctx, "WebSocket registration refused", "user_id", user.ID, "error", err)
		ch.Close(code, err.Error())
		return nil
	}
	slog.DebugContext(ctx, "WebSocket subscribed", "user_id", user.ID)

	if err := ch.ReadPump(); err != nil {
		slog.DebugContext(ctx, "WebSocket read ended", "user_id", user.ID, "error", err)
	}
	s.fanout.Unregister(user.ID, ch)
	ch.Close(websocket.CloseNormalClosure, "")
	return nil
}
