package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "kagent/internal/errors"
	"kagent/internal/model"
	"kagent/internal/predict"
)

const (
	defaultTimespan = 24 * time.Hour
	maxTimespanDays = 3650
)

type nodeView struct {
	CPUUsage       float64         `json:"cpu_usage"`
	MemoryUsage    float64         `json:"memory_usage"`
	Status         string          `json:"status"`
	DiskPressure   bool            `json:"disk_pressure"`
	MemoryPressure bool            `json:"memory_pressure"`
	PIDPressure    bool            `json:"pid_pressure"`
	NetworkIO      model.NetworkIO `json:"network_io"`
}

type podView struct {
	Status      string  `json:"status"`
	Restarts    int     `json:"restarts"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
}

type metricsView struct {
	Nodes     map[string]nodeView `json:"nodes"`
	Pods      map[string]podView  `json:"pods"`
	Timestamp time.Time           `json:"timestamp"`
}

func viewOf(m *model.ClusterMetrics) metricsView {
	v := metricsView{
		Nodes:     make(map[string]nodeView, len(m.Nodes)),
		Pods:      make(map[string]podView, len(m.Pods)),
		Timestamp: m.Timestamp,
	}
	for name, n := range m.Nodes {
		v.Nodes[name] = nodeView{
			CPUUsage:       n.CPUUsage,
			MemoryUsage:    n.MemoryUsage,
			Status:         n.Status,
			DiskPressure:   n.DiskPressure,
			MemoryPressure: n.MemoryPressure,
			PIDPressure:    n.PIDPressure,
			NetworkIO:      n.NetworkIO,
		}
	}
	for name, p := range m.Pods {
		v.Pods[name] = podView{Status: p.Status, Restarts: p.Restarts, CPUUsage: p.CPUUsage, MemoryUsage: p.MemoryUsage}
	}
	return v
}

// currentMetrics returns the service snapshot, collecting on demand and
// falling back to generated data when the cluster cannot be read.
func (s *Server) currentMetrics(c echo.Context) (*model.ClusterMetrics, error) {
	if m := s.a.Service.CurrentMetrics(); m != nil {
		return m, nil
	}
	err := s.a.Service.CollectNow(c.Request().Context())
	if err == nil {
		return s.a.Service.CurrentMetrics(), nil
	}
	if s.a.Fallback == nil {
		return nil, apperrors.ExternalError("failed to collect cluster metrics", err)
	}
	s.logger.Warn("serving fallback metrics", zap.Error(err))
	return s.a.Fallback.Collect(c.Request().Context())
}

func (s *Server) handleMetrics(c echo.Context) error {
	m, err := s.currentMetrics(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, viewOf(m))
}

// latestPrediction computes a prediction when none exists yet. When the
// cluster cannot be read, fallback data is analyzed by a throwaway predictor
// so the live history stays clean.
func (s *Server) latestPrediction(c echo.Context) (model.Prediction, error) {
	if p := s.a.Service.LatestPrediction(); p != nil {
		return *p, nil
	}
	ctx := c.Request().Context()
	pred, err := s.a.Service.PredictNow(ctx)
	if err == nil {
		return pred, nil
	}
	if s.a.Fallback == nil {
		return model.Prediction{}, apperrors.ExternalError("failed to compute prediction", err)
	}
	s.logger.Warn("serving fallback prediction", zap.Error(err))
	m, ferr := s.a.Fallback.Collect(ctx)
	if ferr != nil {
		return model.Prediction{}, apperrors.InternalError("failed to compute prediction", ferr)
	}
	return predict.NewPredictor(s.a.Predictor.Thresholds(), s.clock, zap.NewNop()).Analyze(m), nil
}

func (s *Server) handlePredictions(c echo.Context) error {
	pred, err := s.latestPrediction(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, pred)
}

// parseTimespan accepts Go durations plus a whole-day suffix such as 7d.
func parseTimespan(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultTimespan, nil
	}
	var d time.Duration
	var err error
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		if n > maxTimespanDays {
			n = -1
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		d, err = time.ParseDuration(raw)
	}
	if err != nil || d <= 0 || d > maxTimespanDays*24*time.Hour {
		return 0, apperrors.ValidationError("invalid timespan").WithContext("timespan", raw)
	}
	return d, nil
}

func (s *Server) handleMetricsHistory(c echo.Context) error {
	span, err := parseTimespan(c.QueryParam("timespan"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, s.a.Service.MetricsHistory(span))
}

func (s *Server) handleTrends(c echo.Context) error {
	hours, err := queryInt(c, "hours", 24)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, s.a.Service.Trends(hours))
}

func (s *Server) handleModelInfo(c echo.Context) error {
	if m := s.a.Predictor.Model(); m != nil {
		return respond(c, http.StatusOK, m.Info())
	}
	return respond(c, http.StatusOK, predict.MockInfo(s.clock.Now()))
}

func (s *Server) handleTrain(c echo.Context) error {
	var params model.TrainParams
	if err := bind(c, &params); err != nil {
		return err
	}
	if params.Contamination < 0 || params.Contamination > 0.5 {
		return apperrors.ValidationError("contamination must be in (0, 0.5]").
			WithContext("contamination", params.Contamination)
	}
	if params.Samples < 0 || params.Samples > predict.MaxTrainSamples {
		return apperrors.ValidationError(fmt.Sprintf("samples must be between 0 and %d", predict.MaxTrainSamples)).
			WithContext("samples", params.Samples)
	}
	res, err := s.a.Trainer.Train(params)
	if err != nil {
		return apperrors.InternalError("model training failed", err).WithContext("job_id", res.JobID)
	}
	return respond(c, http.StatusOK, res)
}
