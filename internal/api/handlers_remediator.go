package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "kagent/internal/errors"
	"kagent/internal/model"
	"kagent/internal/remediation"
)

func (s *Server) findIssue(c echo.Context) (model.Issue, error) {
	pred, err := s.latestPrediction(c)
	if err != nil {
		return model.Issue{}, err
	}
	id := c.Param("id")
	for _, is := range pred.Issues {
		if is.ID == id {
			return is, nil
		}
	}
	return model.Issue{}, apperrors.NotFoundError("issue not found").WithContext("issue_id", id)
}

func (s *Server) handleIssues(c echo.Context) error {
	pred, err := s.latestPrediction(c)
	if err != nil {
		return err
	}
	out := FilterByField(pred.Issues, c.QueryParam("severity"),
		func(is model.Issue) string { return string(is.Severity) })
	out = FilterByField(out, c.QueryParam("type"),
		func(is model.Issue) string { return is.Type })
	return respond(c, http.StatusOK, out)
}

type suggestionsResponse struct {
	IssueID       string               `json:"issue_id"`
	IssueType     string               `json:"issue_type"`
	Component     string               `json:"component"`
	AutoRemediate bool                 `json:"auto_remediate"`
	Suggestions   []model.ManualAction `json:"suggestions"`
}

func (s *Server) handleIssueSuggestions(c echo.Context) error {
	is, err := s.findIssue(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, suggestionsResponse{
		IssueID:       is.ID,
		IssueType:     is.Type,
		Component:     is.Component,
		AutoRemediate: s.a.Remediator.Auto(),
		Suggestions:   remediation.Suggestions(is),
	})
}

// handleRemediate runs the strategy for one issue. With auto mode off the
// refusal carries the manual steps instead.
func (s *Server) handleRemediate(c echo.Context) error {
	is, err := s.findIssue(c)
	if err != nil {
		return err
	}
	res := s.a.Remediator.Remediate(c.Request().Context(), is)
	if res.ErrorMessage == remediation.ErrAutoDisabled {
		res.Details["manual_actions"] = remediation.Suggestions(is)
	}
	return respond(c, http.StatusOK, res)
}

func (s *Server) handleRemediationHistory(c echo.Context) error {
	hours, err := queryInt(c, "hours", remediation.DefaultHistoryHours)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", remediation.DefaultHistoryLimit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, s.a.Remediator.History(hours, limit))
}

func (s *Server) handleRemediation(c echo.Context) error {
	res, ok := s.a.Remediator.Get(c.Param("id"))
	if !ok {
		return apperrors.NotFoundError("remediation not found").WithContext("action_id", c.Param("id"))
	}
	return respond(c, http.StatusOK, res)
}

func (s *Server) handleGetAuto(c echo.Context) error {
	return respond(c, http.StatusOK, model.AutoSetting{AutoRemediate: s.a.Remediator.Auto()})
}

func (s *Server) handleSetAuto(c echo.Context) error {
	var req struct {
		AutoRemediate *bool `json:"auto_remediate"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.AutoRemediate == nil {
		return apperrors.ValidationError("auto_remediate is required")
	}
	s.a.Remediator.SetAuto(*req.AutoRemediate)
	return respond(c, http.StatusOK, model.AutoSetting{AutoRemediate: s.a.Remediator.Auto()})
}
