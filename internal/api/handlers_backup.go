package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kagent/internal/model"
)

func (s *Server) handleBackupList(c echo.Context) error {
	out := FilterByField(s.a.Backups.List(), c.QueryParam("status"),
		func(j model.BackupJob) string { return string(j.Status) })
	return respond(c, http.StatusOK, out)
}

func (s *Server) handleBackupGet(c echo.Context) error {
	d, err := s.a.Backups.Detail(c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, d)
}

func (s *Server) handleBackupCreate(c echo.Context) error {
	var job model.BackupJob
	if err := bind(c, &job); err != nil {
		return err
	}
	created, err := s.a.Backups.Create(c.Request().Context(), job)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, created)
}

func (s *Server) handleRestore(c echo.Context) error {
	var job model.RestoreJob
	if err := bind(c, &job); err != nil {
		return err
	}
	job.BackupID = c.Param("id")
	res, err := s.a.Backups.Restore(c.Request().Context(), job)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, res)
}

func (s *Server) handleBackupDelete(c echo.Context) error {
	id := c.Param("id")
	if err := s.a.Backups.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleRestoreJobs(c echo.Context) error {
	out := FilterByField(s.a.Backups.Restores(), c.QueryParam("status"),
		func(j model.RestoreJob) string { return string(j.Status) })
	return respond(c, http.StatusOK, out)
}

func (s *Server) handleGetSchedule(c echo.Context) error {
	return respond(c, http.StatusOK, s.a.Backups.Schedule())
}

type scheduleRequest struct {
	Cron     string          `json:"cron"`
	Template model.BackupJob `json:"template"`
}

func (s *Server) handleSetSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sched, err := s.a.Backups.SetSchedule(req.Cron, req.Template)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, sched)
}
