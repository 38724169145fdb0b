package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apperrors "github.com/madhavanSPR/VDI-DASHBOARD/internal/platform/errors"
)

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api", s.requireAuth)
	api.GET("/vdis", s.handleListVDIs)
	api.POST("/vdis/:id/assign", s.handleAssignVDI)
	api.POST("/vdis/:id/request", s.handleRequestVDI)
	api.GET("/requests", s.handleListRequests)
	api.POST("/requests/:id/approve", s.handleApproveRequest)
	api.POST("/requests/:id/reject", s.handleRejectRequest)
}

func (s *Server) handleListVDIs(c echo.Context) error {
	vdis, err := s.app.ListVDIs(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list VDIs", err)
	}
	return writeJSON(c, http.StatusOK, vdis)
}

func (s *Server) handleAssignVDI(c echo.Context) error {
	vdiID := c.Param("id")
	user := currentUser(c)

	vdi, err := s.app.AssignVDI(c.Request().Context(), vdiID, user.ID)
	if err != nil {
		return apperrors.FromLedger(err).WithContext("vdi_id", vdiID)
	}
	return writeJSON(c, http.StatusOK, vdi)
}

func (s *Server) handleRequestVDI(c echo.Context) error {
	user := currentUser(c)
	req := s.app.RequestVDI(c.Request().Context(), c.Param("id"), user.ID)
	return writeJSON(c, http.StatusOK, req)
}

func (s *Server) handleListRequests(c echo.Context) error {
	reqs, err := s.app.ListRequests(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list requests", err)
	}
	return writeJSON(c, http.StatusOK, reqs)
}

func (s *Server) handleApproveRequest(c echo.Context) error {
	requestID, err := parseRequestID(c)
	if err != nil {
		return err
	}

	req, err := s.app.ApproveRequest(c.Request().Context(), requestID)
	if err != nil {
		return apperrors.FromLedger(err).WithContext("request_id", requestID)
	}
	return writeJSON(c, http.StatusOK, req)
}

func (s *Server) handleRejectRequest(c echo.Context) error {
	requestID, err := parseRequestID(c)
	if err != nil {
		return err
	}

	req, err := s.app.RejectRequest(c.Request().Context(), requestID)
	if err != nil {
		return apperrors.FromLedger(err).WithContext("request_id", requestID)
	}
	return writeJSON(c, http.StatusOK, req)
}

func parseRequestID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError("invalid request id")
	}
	return id, nil
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to write JSON response: %w", err)
	}
	return nil
}
