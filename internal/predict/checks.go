package predict

import (
	"fmt"
	"math"

	"kagent/internal/model"
	"kagent/internal/trend"
)

func thresholdIssues(m *model.ClusterMetrics, th model.Thresholds) []model.Issue {
	var out []model.Issue
	nodes := sortedNodes(m)

	for _, name := range nodes {
		if is, ok := usageIssue(model.IssueHighCPU, "CPU", name, m.Nodes[name].CPUUsage, th.CPUWarning, th.CPUCritical); ok {
			out = append(out, is)
		}
	}
	for _, name := range nodes {
		if is, ok := usageIssue(model.IssueHighMemory, "memory", name, m.Nodes[name].MemoryUsage, th.MemoryWarning, th.MemoryCritical); ok {
			out = append(out, is)
		}
	}

	for _, name := range sortedPods(m) {
		restarts := m.Pods[name].Restarts
		if restarts < th.Restarts {
			continue
		}
		out = append(out, model.Issue{
			Type:        model.IssueFrequentRestarts,
			Component:   name,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Pod %s has restarted %d times", name, restarts),
			Details:     map[string]any{"restart_count": restarts},
		})
	}

	pressures := []struct {
		issue string
		kind  string
		label string
		on    func(model.NodeMetrics) bool
	}{
		{model.IssueDiskPressure, "disk", "Disk", func(n model.NodeMetrics) bool { return n.DiskPressure }},
		{model.IssueMemoryPressure, "memory", "Memory", func(n model.NodeMetrics) bool { return n.MemoryPressure }},
		{model.IssuePIDPressure, "pid", "PID", func(n model.NodeMetrics) bool { return n.PIDPressure }},
	}
	for _, pr := range pressures {
		for _, name := range nodes {
			if !pr.on(m.Nodes[name]) {
				continue
			}
			out = append(out, model.Issue{
				Type:        pr.issue,
				Component:   name,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("%s pressure detected on %s", pr.label, name),
				Details:     map[string]any{"pressure_type": pr.kind},
			})
		}
	}
	return out
}

func usageIssue(issueType, resource, node string, usage, warn, crit float64) (model.Issue, bool) {
	is := model.Issue{
		Type:      issueType,
		Component: node,
		Details:   map[string]any{"usage": usage},
	}
	switch {
	case usage >= crit:
		is.Severity = model.SeverityCritical
		is.Description = fmt.Sprintf("Critical %s usage on %s: %.1f%%", resource, node, usage)
	case usage >= warn:
		is.Severity = model.SeverityWarning
		is.Description = fmt.Sprintf("High %s usage on %s: %.1f%%", resource, node, usage)
	default:
		return model.Issue{}, false
	}
	return is, true
}

// nodeSeries extracts one value per snapshot that contains node.
func nodeSeries(recent []*model.ClusterMetrics, node string, get func(model.NodeMetrics) float64) []float64 {
	var out []float64
	for _, s := range recent {
		if n, ok := s.Nodes[node]; ok {
			out = append(out, get(n))
		}
	}
	return out
}

func cpuOf(n model.NodeMetrics) float64 { return n.CPUUsage }
func memOf(n model.NodeMetrics) float64 { return n.MemoryUsage }

func trendIssues(m *model.ClusterMetrics, recent []*model.ClusterMetrics, th model.Thresholds) []model.Issue {
	if len(recent) < 2 {
		return nil
	}
	var out []model.Issue
	checks := []struct {
		issue string
		label string
		get   func(model.NodeMetrics) float64
	}{
		{model.IssueCPUTrend, "CPU", cpuOf},
		{model.IssueMemoryTrend, "Memory", memOf},
	}
	for _, c := range checks {
		for _, name := range sortedNodes(m) {
			series := nodeSeries(recent, name, c.get)
			if len(series) < 2 {
				continue
			}
			slope := trend.Slope(series)
			if slope <= th.TrendSlope {
				continue
			}
			out = append(out, model.Issue{
				Type:        c.issue,
				Component:   name,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("%s usage on %s is increasing rapidly", c.label, name),
				Details: map[string]any{
					"current_usage": c.get(m.Nodes[name]),
					"slope":         slope,
					"history":       series,
				},
			})
		}
	}
	return out
}

func correlationIssues(m *model.ClusterMetrics, recent []*model.ClusterMetrics, th model.Thresholds) []model.Issue {
	if len(recent) < 2 {
		return nil
	}
	var out []model.Issue
	for _, name := range sortedNodes(m) {
		cpu := nodeSeries(recent, name, cpuOf)
		mem := nodeSeries(recent, name, memOf)
		if len(cpu) < 2 || len(mem) < 2 {
			continue
		}
		r := trend.Pearson(cpu, mem)
		if math.Abs(r) <= th.CorrelationThreshold {
			continue
		}
		out = append(out, model.Issue{
			Type:        model.IssueResourceCorrelation,
			Component:   name,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Strong correlation between CPU and memory usage on %s", name),
			Details: map[string]any{
				"correlation":    r,
				"cpu_history":    cpu,
				"memory_history": mem,
			},
		})
	}
	return out
}

func anomalyIssues(m *model.ClusterMetrics, am *AnomalyModel) []model.Issue {
	var out []model.Issue
	for _, name := range sortedNodes(m) {
		x := nodeFeatures(m.Nodes[name])
		score := am.Score(x)
		if score <= am.Threshold {
			continue
		}
		out = append(out, model.Issue{
			Type:        model.IssueMLAnomaly,
			Component:   name,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("ML model detected anomalous behavior on %s", name),
			Details: map[string]any{
				"features": x,
				"score":    score,
			},
		})
	}
	return out
}
