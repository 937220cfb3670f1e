package backup

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apperrors "kagent/internal/errors"
	"kagent/internal/model"
)

// SetSchedule replaces the periodic backup. An empty expression disables it.
func (m *Manager) SetSchedule(expr string, template model.BackupJob) (model.Schedule, error) {
	var sched cron.Schedule
	if expr != "" {
		s, err := cron.ParseStandard(expr)
		if err != nil {
			return model.Schedule{}, apperrors.ValidationError("invalid cron expression").
				WithContext("cron", expr).WithContext("reason", err.Error())
		}
		sched = s
	}
	if template.Name == "" {
		template.Name = "scheduled"
	}

	m.mu.Lock()
	if m.entry != 0 {
		m.cron.Remove(m.entry)
		m.entry = 0
	}
	m.schedule = model.Schedule{Cron: expr, Enabled: sched != nil, Template: template}
	if sched != nil {
		m.entry = m.cron.Schedule(sched, cron.FuncJob(func() { m.runScheduled(template) }))
	}
	m.mu.Unlock()

	m.logger.Info("backup schedule updated", zap.String("cron", expr), zap.Bool("enabled", sched != nil))
	return m.Schedule(), nil
}

// Schedule returns the current schedule and its next run.
func (m *Manager) Schedule() model.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.schedule
	if m.entry != 0 {
		if next := m.cron.Entry(m.entry).Next; !next.IsZero() {
			s.NextRun = &next
		}
	}
	return s
}

func (m *Manager) runScheduled(template model.BackupJob) {
	job := template
	job.ID = ""
	job.Name = template.Name + "-" + m.clock.Now().Format(archiveTimeFmt)
	if _, err := m.Create(context.Background(), job); err != nil {
		m.logger.Error("scheduled backup rejected", zap.Error(err))
	}
}
