package risk

import "kagent/internal/model"

type Posture string

const (
	Low      Posture = "LOW"
	Moderate Posture = "MODERATE"
	High     Posture = "HIGH"
	Critical Posture = "CRITICAL"
)

func FromScore(score float64) Posture {
	switch {
	case score >= 90:
		return Low
	case score >= 70:
		return Moderate
	case score >= 50:
		return High
	default:
		return Critical
	}
}

type Status string

const (
	StatusCritical Status = "Critical"
	StatusWarning  Status = "Warning"
	StatusHealthy  Status = "Healthy"
)

// NodeStatus grades one node against the thresholds.
func NodeStatus(n model.NodeMetrics, th model.Thresholds) Status {
	if n.CPUUsage >= th.CPUCritical || n.MemoryUsage >= th.MemoryCritical {
		return StatusCritical
	}
	if n.CPUUsage >= th.CPUWarning || n.MemoryUsage >= th.MemoryWarning ||
		n.DiskPressure || n.MemoryPressure || n.PIDPressure {
		return StatusWarning
	}
	return StatusHealthy
}

// ClusterStatus is the worst node status. The synthetic cluster entry is ignored.
func ClusterStatus(m *model.ClusterMetrics, th model.Thresholds) Status {
	if m == nil {
		return StatusHealthy
	}
	worst := StatusHealthy
	for name, n := range m.Nodes {
		if name == model.ClusterNode {
			continue
		}
		switch NodeStatus(n, th) {
		case StatusCritical:
			return StatusCritical
		case StatusWarning:
			worst = StatusWarning
		}
	}
	return worst
}
