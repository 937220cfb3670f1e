package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "kagent/internal/errors"
	"kagent/internal/model"
	"kagent/internal/security"
)

func (s *Server) latestScan() (*model.ScanResult, error) {
	r := s.a.Scanner.Latest()
	if r == nil {
		return nil, apperrors.NotFoundError("No security scans have been performed")
	}
	return r, nil
}

func (s *Server) handleScanResults(c echo.Context) error {
	r, err := s.latestScan()
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, r)
}

func (s *Server) handleScanStart(c echo.Context) error {
	r, err := s.a.Scanner.Scan(c.Request().Context())
	if err != nil {
		return apperrors.ExternalError("security scan failed", err)
	}
	return respond(c, http.StatusOK, r)
}

func severityParam(c echo.Context) (string, error) {
	sev := strings.ToLower(c.QueryParam("severity"))
	switch model.Severity(sev) {
	case "", model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow:
		return sev, nil
	}
	return "", apperrors.ValidationError("invalid severity").WithContext("severity", c.QueryParam("severity"))
}

func (s *Server) scanIssues(c echo.Context, pick func(*model.ScanResult) []model.SecurityIssue) error {
	sev, err := severityParam(c)
	if err != nil {
		return err
	}
	r, err := s.latestScan()
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, security.FilterBySeverity(pick(r), sev))
}

func (s *Server) handleVulnerabilities(c echo.Context) error {
	return s.scanIssues(c, func(r *model.ScanResult) []model.SecurityIssue { return r.Vulnerabilities })
}

func (s *Server) handleMisconfigurations(c echo.Context) error {
	return s.scanIssues(c, func(r *model.ScanResult) []model.SecurityIssue { return r.Misconfigs })
}

func (s *Server) handleCompliance(c echo.Context) error {
	return s.scanIssues(c, func(r *model.ScanResult) []model.SecurityIssue { return r.ComplianceIssues })
}

func (s *Server) handleScanHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return err
	}
	scans := s.a.Scanner.History(limit)
	out := make([]model.ScanSummary, 0, len(scans))
	for _, r := range scans {
		out = append(out, r.Summary())
	}
	return respond(c, http.StatusOK, out)
}
