package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "kagent/internal/errors"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/status", s.handleStatus)

	if s.a.Service != nil && s.a.Predictor != nil {
		p := api.Group("/predictor")
		p.GET("/metrics", s.handleMetrics)
		p.GET("/predictions", s.handlePredictions)
		p.GET("/metrics/history", s.handleMetricsHistory)
		p.GET("/trends", s.handleTrends)
		p.GET("/model/info", s.handleModelInfo)
		if s.a.Trainer != nil {
			p.POST("/model/train", s.handleTrain)
		}
	}

	if s.a.Scanner != nil {
		sec := api.Group("/security")
		sec.GET("/scan/results", s.handleScanResults)
		sec.POST("/scan/start", s.handleScanStart)
		sec.GET("/vulnerabilities", s.handleVulnerabilities)
		sec.GET("/misconfigurations", s.handleMisconfigurations)
		sec.GET("/compliance", s.handleCompliance)
		sec.GET("/scan/history", s.handleScanHistory)
	}

	if s.a.Optimizer != nil {
		c := api.Group("/cost")
		c.GET("/analysis", s.handleCostAnalysis)
		c.GET("/suggestions", s.handleCostSuggestions)
		c.GET("/utilization", s.handleUtilization)
		c.POST("/optimize/:id", s.handleOptimize)
		c.GET("/history", s.handleCostHistory)
		c.GET("/cloud/details", s.handleCloudDetails)
	}

	if s.a.Backups != nil {
		b := api.Group("/backup")
		b.GET("/list", s.handleBackupList)
		b.POST("/create", s.handleBackupCreate)
		b.GET("/restore/jobs", s.handleRestoreJobs)
		b.GET("/schedule", s.handleGetSchedule)
		b.POST("/schedule", s.handleSetSchedule)
		b.GET("/:id", s.handleBackupGet)
		b.DELETE("/:id", s.handleBackupDelete)
		b.POST("/:id/restore", s.handleRestore)
	}

	if s.a.Remediator != nil && s.a.Service != nil {
		r := api.Group("/remediator")
		r.GET("/issues", s.handleIssues)
		r.GET("/issues/:id/suggestions", s.handleIssueSuggestions)
		r.POST("/issues/:id/remediate", s.handleRemediate)
		r.GET("/history", s.handleRemediationHistory)
		r.GET("/remediation/:id", s.handleRemediation)
		r.GET("/settings/auto", s.handleGetAuto)
		r.POST("/settings/auto", s.handleSetAuto)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	if s.a.Service == nil {
		return apperrors.NotFoundError("agent service is not running")
	}
	return respond(c, http.StatusOK, s.a.Service.Status())
}

func respond(c echo.Context, code int, v any) error {
	if err := c.JSON(code, v); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// queryInt reads a non-negative integer parameter, def when absent.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.ValidationError("invalid "+name+" parameter").WithContext(name, raw)
	}
	return n, nil
}

// bind decodes the request body. An empty body leaves v untouched.
func bind(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return apperrors.ValidationError("invalid request body").WithContext("reason", err.Error())
	}
	return nil
}
