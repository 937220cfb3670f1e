package cost

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"kagent/internal/collect"
	"kagent/internal/model"
	"kagent/internal/trend"
)

const (
	rightSizeRatio   = 0.5
	headroom         = 1.2
	minCPURequest    = 0.1
	minMemoryRequest = 128 * mib
	minPodSavings    = 1.0

	nodeCPUIdle     = 40.0
	nodeMemoryIdle  = 50.0
	nodeShrink      = 0.8
	minNodeSavings  = 10.0
	nodeConfidence  = 0.7
	quotaCPUCores   = 4.0
	quotaMemory     = 4 * gib
	quotaConfidence = 0.8
)

var rightSizeOwners = map[string]bool{
	model.ResourceDeployment:  true,
	model.ResourceStatefulSet: true,
	model.ResourceReplicaSet:  true,
	model.ResourceDaemonSet:   true,
}

func priorityFor(savings float64) model.Priority {
	switch {
	case savings > 50:
		return model.PriorityHigh
	case savings > 10:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// workload maps a pod to the object a request change would be applied to. A
// ReplicaSet resolves to its Deployment when one with the derived name exists.
func workload(inv *model.Inventory, p model.Pod) (kind, name string) {
	if p.OwnerKind != model.ResourceReplicaSet {
		return p.OwnerKind, p.OwnerName
	}
	i := strings.LastIndex(p.OwnerName, "-")
	if i <= 0 {
		return p.OwnerKind, p.OwnerName
	}
	dep := p.OwnerName[:i]
	for _, d := range inv.Deployments {
		if d.Namespace == p.Namespace && d.Name == dep {
			return model.ResourceDeployment, dep
		}
	}
	return p.OwnerKind, p.OwnerName
}

func (o *Optimizer) analyzePods() []model.CostSuggestion {
	if o.inv == nil {
		return nil
	}
	rates := Pricing[o.provider]
	expected := o.window.Hours() * rightSizeRatio

	var out []model.CostSuggestion
	for _, p := range o.inv.Pods {
		if p.Phase != "Running" || !rightSizeOwners[p.OwnerKind] {
			continue
		}
		samples := o.pods[p.Key()]
		if len(samples) == 0 {
			continue
		}
		last := samples[len(samples)-1]
		cpu := make([]float64, len(samples))
		mem := make([]float64, len(samples))
		for i, s := range samples {
			cpu[i], mem[i] = s.CPUUsage, s.MemoryUsage
		}
		cpuP95, memP95 := trend.P95(cpu), trend.P95(mem)

		cpuOver := last.CPURequest > 0 && cpuP95/last.CPURequest < rightSizeRatio
		memOver := last.MemoryRequest > 0 && memP95/last.MemoryRequest < rightSizeRatio
		if !cpuOver && !memOver {
			continue
		}

		newCPU, newMem := last.CPURequest, last.MemoryRequest
		if cpuOver {
			newCPU = math.Max(minCPURequest, cpuP95*headroom)
		}
		if memOver {
			newMem = math.Max(minMemoryRequest, memP95*headroom)
		}
		cpuSave := math.Max(0, (last.CPURequest-newCPU)*rates.CPUCoreHour*hoursPerMonth)
		memSave := math.Max(0, (last.MemoryRequest-newMem)/gib*rates.MemoryGBHour*hoursPerMonth)
		total := cpuSave + memSave
		if total <= minPodSavings {
			continue
		}

		kind, name := workload(o.inv, p)
		out = append(out, model.CostSuggestion{
			ResourceType: kind,
			Namespace:    p.Namespace,
			Name:         name,
			CurrentAllocation: map[string]any{
				"cpu_request":    trend.Round(last.CPURequest, 3),
				"memory_request": math.Round(last.MemoryRequest),
				"cpu_p95":        trend.Round(cpuP95, 3),
				"memory_p95":     math.Round(memP95),
			},
			SuggestedAllocation: map[string]any{
				"cpu_request":    trend.Round(newCPU, 3),
				"memory_request": math.Round(newMem),
			},
			EstimatedSavings: model.EstimatedSavings{
				CPUMonthly:    trend.Round(cpuSave, 2),
				MemoryMonthly: trend.Round(memSave, 2),
				TotalMonthly:  trend.Round(total, 2),
			},
			Confidence: trend.Round(math.Min(0.9, float64(len(samples))/expected), 2),
			Priority:   priorityFor(total),
		})
	}
	return out
}

func (o *Optimizer) analyzeNodeGroups() []model.CostSuggestion {
	if o.inv == nil {
		return nil
	}
	groups := map[string][]model.Node{}
	for _, n := range o.inv.Nodes {
		groups[n.InstanceType] = append(groups[n.InstanceType], n)
	}
	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)

	var out []model.CostSuggestion
	for _, t := range types {
		nodes := groups[t]
		it, known := instanceType(o.provider, t)
		if len(nodes) < 2 || !known {
			continue
		}
		var cpuSum, memSum float64
		var sampled int
		for _, n := range nodes {
			samples := o.nodes[n.Name]
			if len(samples) == 0 {
				continue
			}
			for _, s := range samples {
				cpuSum += s.CPUUtil
				memSum += s.MemoryUtil
			}
			sampled += len(samples)
		}
		if sampled == 0 {
			continue
		}
		avgCPU, avgMem := cpuSum/float64(sampled), memSum/float64(sampled)
		if avgCPU >= nodeCPUIdle || avgMem >= nodeMemoryIdle {
			continue
		}
		target := max(1, int(float64(len(nodes))*nodeShrink))
		reduced := len(nodes) - target
		savings := float64(reduced) * it.CostPerHour * hoursPerMonth
		if savings <= minNodeSavings {
			continue
		}
		prio := model.PriorityMedium
		if savings > 100 {
			prio = model.PriorityHigh
		}
		out = append(out, model.CostSuggestion{
			ResourceType: model.ResourceNodeGroup,
			Name:         t,
			CurrentAllocation: map[string]any{
				"node_count":      len(nodes),
				"instance_type":   t,
				"avg_cpu_util":    trend.Round(avgCPU, 1),
				"avg_memory_util": trend.Round(avgMem, 1),
			},
			SuggestedAllocation: map[string]any{
				"node_count":    target,
				"instance_type": t,
			},
			EstimatedSavings: model.EstimatedSavings{
				TotalMonthly: trend.Round(savings, 2),
				NodesReduced: reduced,
			},
			Confidence: nodeConfidence,
			Priority:   prio,
		})
	}
	return out
}

// analyzeQuotas suggests a ResourceQuota for busy namespaces without one.
// These carry no direct savings.
func analyzeQuotas(inv *model.Inventory) []model.CostSuggestion {
	if inv == nil {
		return nil
	}
	hasQuota := map[string]bool{}
	for _, q := range inv.ResourceQuotas {
		hasQuota[q.Namespace] = true
	}
	type total struct{ cpu, mem float64 }
	usage := map[string]*total{}
	for _, p := range inv.Pods {
		if p.Phase != "Running" || collect.IsSystemNamespace(p.Namespace) || hasQuota[p.Namespace] {
			continue
		}
		cpu, mem := p.Requests()
		t := usage[p.Namespace]
		if t == nil {
			t = &total{}
			usage[p.Namespace] = t
		}
		t.cpu += cpu
		t.mem += mem
	}
	namespaces := make([]string, 0, len(usage))
	for ns := range usage {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	var out []model.CostSuggestion
	for _, ns := range namespaces {
		t := usage[ns]
		if t.cpu <= quotaCPUCores && t.mem <= quotaMemory {
			continue
		}
		// Whole units, rounded up so the quota never lands below requests*headroom.
		cpuQuota := math.Max(1, math.Ceil(trend.Round(t.cpu*headroom, 3)))
		memQuotaGi := math.Max(1, math.Ceil(trend.Round(t.mem*headroom/gib, 3)))
		out = append(out, model.CostSuggestion{
			ResourceType: model.ResourceResourceQuota,
			Namespace:    ns,
			Name:         ns + "-quota",
			CurrentAllocation: map[string]any{
				"cpu_requests":    trend.Round(t.cpu, 3),
				"memory_requests": math.Round(t.mem),
			},
			SuggestedAllocation: map[string]any{
				"requests.cpu":    formatCores(cpuQuota),
				"requests.memory": formatGi(memQuotaGi),
				"limits.cpu":      formatCores(cpuQuota),
				"limits.memory":   formatGi(memQuotaGi),
			},
			EstimatedSavings: model.EstimatedSavings{
				RiskMitigation: "Prevents runaway resource consumption",
			},
			Confidence: quotaConfidence,
			Priority:   model.PriorityMedium,
		})
	}
	return out
}

func formatCores(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
func formatGi(v float64) string    { return strconv.FormatFloat(v, 'f', -1, 64) + "Gi" }
