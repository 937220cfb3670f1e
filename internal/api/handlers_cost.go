package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "kagent/internal/errors"
	"kagent/internal/model"
)

// ensureCostRun runs a first analysis so a fresh agent has something to serve.
func (s *Server) ensureCostRun(c echo.Context) error {
	if len(s.a.Optimizer.History(1)) > 0 {
		return nil
	}
	if _, err := s.a.Optimizer.Analyze(c.Request().Context()); err != nil {
		return apperrors.ExternalError("cost analysis failed", err)
	}
	return nil
}

func (s *Server) handleCostAnalysis(c echo.Context) error {
	if err := s.ensureCostRun(c); err != nil {
		return err
	}
	return respond(c, http.StatusOK, s.a.Optimizer.Analysis())
}

func (s *Server) handleCostSuggestions(c echo.Context) error {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return err
	}
	priority := c.QueryParam("priority")
	switch model.Priority(priority) {
	case "", model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
	default:
		return apperrors.ValidationError("invalid priority").WithContext("priority", priority)
	}
	if err := s.ensureCostRun(c); err != nil {
		return err
	}
	return respond(c, http.StatusOK, s.a.Optimizer.Suggestions(limit, priority))
}

func (s *Server) handleUtilization(c echo.Context) error {
	if err := s.ensureCostRun(c); err != nil {
		return err
	}
	return respond(c, http.StatusOK, s.a.Optimizer.Utilization())
}

func (s *Server) handleOptimize(c echo.Context) error {
	res, err := s.a.Optimizer.Apply(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, res)
}

func (s *Server) handleCostHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, s.a.Optimizer.History(limit))
}

func (s *Server) handleCloudDetails(c echo.Context) error {
	return respond(c, http.StatusOK, s.a.Optimizer.CloudDetails())
}
