package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/kube"
	"kagent/internal/model"
)

// Source produces cluster metric snapshots.
type Source interface {
	Collect(ctx context.Context) (*model.ClusterMetrics, error)
}

// Collector builds snapshots from the core API and metrics.k8s.io.
type Collector struct {
	client  kubernetes.Interface
	metrics kube.MetricsReader
	clock   clockwork.Clock
	logger  *zap.Logger
}

func NewCollector(client kubernetes.Interface, metrics kube.MetricsReader, clock clockwork.Clock, logger *zap.Logger) *Collector {
	return &Collector{client: client, metrics: metrics, clock: clock, logger: logger.Named("collector")}
}

// Collect lists nodes and pods and joins them with usage. Missing usage
// data leaves percentages at 0; list failures are returned.
func (c *Collector) Collect(ctx context.Context) (*model.ClusterMetrics, error) {
	nodes, err := c.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	pods, err := c.client.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	nodeUsage := map[string]kube.Usage{}
	podUsage := map[string]kube.Usage{}
	if c.metrics != nil {
		if nu, err := c.metrics.NodeMetrics(ctx); err == nil {
			nodeUsage = nu
		} else {
			c.logUsageErr("node", err)
		}
		if pu, err := c.metrics.PodMetrics(ctx); err == nil {
			for _, p := range pu {
				podUsage[p.Namespace+"/"+p.Name] = p.Usage
			}
		} else {
			c.logUsageErr("pod", err)
		}
	}

	out := model.NewClusterMetrics(c.clock.Now())

	var sumCPU, sumMem float64
	for i := range nodes.Items {
		n := toModelNode(&nodes.Items[i])
		nm := model.NodeMetrics{
			Status:         n.Status,
			DiskPressure:   n.DiskPressure,
			MemoryPressure: n.MemoryPressure,
			PIDPressure:    n.PIDPressure,
			InstanceType:   n.InstanceType,
		}
		if u, ok := nodeUsage[n.Name]; ok {
			nm.CPUUsage = percent(u.CPU, n.CPUCapacity)
			nm.MemoryUsage = percent(u.Memory, n.MemoryCapacity)
		}
		sumCPU += nm.CPUUsage
		sumMem += nm.MemoryUsage
		out.Nodes[n.Name] = nm
	}
	if count := len(nodes.Items); count > 0 {
		out.Nodes[model.ClusterNode] = model.NodeMetrics{
			CPUUsage:    sumCPU / float64(count),
			MemoryUsage: sumMem / float64(count),
			Status:      "Aggregate",
		}
	} else {
		out.Nodes[model.ClusterNode] = model.NodeMetrics{Status: "Aggregate"}
	}

	for i := range pods.Items {
		p := ToModelPod(&pods.Items[i])
		pm := model.PodMetrics{
			Namespace: p.Namespace,
			Node:      p.Node,
			Status:    p.Phase,
			Restarts:  p.Restarts,
		}
		if u, ok := podUsage[p.Key()]; ok {
			cpuLim, memLim := p.Limits()
			pm.CPUUsage = percent(u.CPU, cpuLim)
			pm.MemoryUsage = percent(u.Memory, memLim)
		}
		out.Pods[p.Name] = pm
	}

	return out, nil
}

func (c *Collector) logUsageErr(kind string, err error) {
	if errors.Is(err, kube.ErrMetricsUnavailable) {
		c.logger.Debug("usage unavailable", zap.String("kind", kind), zap.Error(err))
		return
	}
	c.logger.Warn("read usage", zap.String("kind", kind), zap.Error(err))
}

func percent(used, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return used / capacity * 100
}
