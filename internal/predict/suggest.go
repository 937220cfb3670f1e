package predict

import (
	"fmt"

	"kagent/internal/model"
)

// Suggest maps an issue to its remediation hint. ml_anomaly has none.
func Suggest(is model.Issue, th model.Thresholds) (model.Suggestion, bool) {
	s := model.Suggestion{IssueType: is.Type, Component: is.Component}
	c := is.Component
	switch is.Type {
	case model.IssueHighCPU:
		s.Action = "scale_cpu"
		s.Description = fmt.Sprintf("Scale CPU resources for %s", c)
		s.Details = map[string]any{"current_usage": is.Details["usage"], "target_usage": th.CPUWarning - 10}
	case model.IssueHighMemory:
		s.Action = "scale_memory"
		s.Description = fmt.Sprintf("Scale memory resources for %s", c)
		s.Details = map[string]any{"current_usage": is.Details["usage"], "target_usage": th.MemoryWarning - 10}
	case model.IssueFrequentRestarts:
		s.Action = "investigate_restarts"
		s.Description = fmt.Sprintf("Investigate frequent restarts of %s", c)
		s.Details = map[string]any{"restart_count": is.Details["restart_count"], "threshold": th.Restarts}
	case model.IssueDiskPressure:
		s.Action = "cleanup_disk"
		s.Description = fmt.Sprintf("Clean up disk space on %s", c)
		s.Details = map[string]any{"pressure_type": "disk"}
	case model.IssueMemoryPressure:
		s.Action = "cleanup_memory"
		s.Description = fmt.Sprintf("Clean up memory on %s", c)
		s.Details = map[string]any{"pressure_type": "memory"}
	case model.IssuePIDPressure:
		s.Action = "cleanup_pids"
		s.Description = fmt.Sprintf("Clean up PIDs on %s", c)
		s.Details = map[string]any{"pressure_type": "pid"}
	case model.IssueCPUTrend:
		s.Action = "scale_cpu_trend"
		s.Description = fmt.Sprintf("Scale CPU resources for %s based on trend", c)
		s.Details = map[string]any{"slope": is.Details["slope"], "current_usage": is.Details["current_usage"]}
	case model.IssueMemoryTrend:
		s.Action = "scale_memory_trend"
		s.Description = fmt.Sprintf("Scale memory resources for %s based on trend", c)
		s.Details = map[string]any{"slope": is.Details["slope"], "current_usage": is.Details["current_usage"]}
	case model.IssueResourceCorrelation:
		s.Action = "balance_resources"
		s.Description = fmt.Sprintf("Balance CPU and memory resources on %s", c)
		s.Details = map[string]any{"correlation": is.Details["correlation"], "threshold": th.CorrelationThreshold}
	default:
		return model.Suggestion{}, false
	}
	return s, true
}

var severityWeights = map[model.Severity]float64{
	model.SeverityCritical: 0.3,
	model.SeverityWarning:  0.1,
}

var typeWeights = map[string]float64{
	model.IssueHighCPU:             0.2,
	model.IssueHighMemory:          0.2,
	model.IssueFrequentRestarts:    0.15,
	model.IssueDiskPressure:        0.1,
	model.IssueMemoryPressure:      0.1,
	model.IssuePIDPressure:         0.1,
	model.IssueCPUTrend:            0.05,
	model.IssueMemoryTrend:         0.05,
	model.IssueResourceCorrelation: 0.05,
	model.IssueMLAnomaly:           0.1,
}

// Confidence starts at 1 and loses 0.1 per issue plus a weight for each
// issue's severity and type, clamped to [0, 1].
func Confidence(issues []model.Issue) float64 {
	if len(issues) == 0 {
		return 1
	}
	c := clamp01(1 - 0.1*float64(len(issues)))
	for _, is := range issues {
		c -= severityWeights[is.Severity]
		c -= typeWeights[is.Type]
	}
	return clamp01(c)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
