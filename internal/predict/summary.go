package predict

import (
	"kagent/internal/model"
	"kagent/internal/trend"
)

func trendSummary(m *model.ClusterMetrics, recent []*model.ClusterMetrics) model.TrendSummary {
	out := model.TrendSummary{
		CPUTrends:     map[string]model.TrendPoint{},
		MemoryTrends:  map[string]model.TrendPoint{},
		RestartTrends: map[string]model.TrendPoint{},
	}
	if len(recent) < 2 {
		return out
	}
	for _, name := range sortedNodes(m) {
		if s := nodeSeries(recent, name, cpuOf); len(s) >= 2 {
			out.CPUTrends[name] = point(s)
		}
		if s := nodeSeries(recent, name, memOf); len(s) >= 2 {
			out.MemoryTrends[name] = point(s)
		}
	}
	for _, pod := range sortedPods(m) {
		var s []float64
		for _, snap := range recent {
			if p, ok := snap.Pods[pod]; ok {
				s = append(s, float64(p.Restarts))
			}
		}
		if len(s) >= 2 {
			out.RestartTrends[pod] = point(s)
		}
	}
	return out
}

func point(s []float64) model.TrendPoint {
	return model.TrendPoint{
		Slope:   trend.Slope(s),
		Current: s[len(s)-1],
		Average: trend.Mean(s),
		Change:  trend.Compute(s[0], s[len(s)-1]),
	}
}

func correlationSummary(m *model.ClusterMetrics, recent []*model.ClusterMetrics) model.CorrelationSummary {
	out := model.CorrelationSummary{
		CPUMemory: map[string]float64{},
		Pressure:  map[string]map[string]float64{},
	}
	if len(recent) < 2 {
		return out
	}
	for _, name := range sortedNodes(m) {
		cpu := nodeSeries(recent, name, cpuOf)
		mem := nodeSeries(recent, name, memOf)
		if len(cpu) < 2 {
			continue
		}
		out.CPUMemory[name] = trend.Pearson(cpu, mem)

		var disk, memP, pid []bool
		for _, snap := range recent {
			if n, ok := snap.Nodes[name]; ok {
				disk = append(disk, n.DiskPressure)
				memP = append(memP, n.MemoryPressure)
				pid = append(pid, n.PIDPressure)
			}
		}
		d, mp, pp := trend.Bools(disk), trend.Bools(memP), trend.Bools(pid)
		out.Pressure[name] = map[string]float64{
			"disk_memory": trend.Pearson(d, mp),
			"disk_pid":    trend.Pearson(d, pp),
			"memory_pid":  trend.Pearson(mp, pp),
		}
	}
	return out
}
