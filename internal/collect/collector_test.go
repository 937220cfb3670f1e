package collect

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"kagent/internal/kube"
	"kagent/internal/model"
)

type stubMetrics struct {
	nodes map[string]kube.Usage
	pods  []kube.PodUsage
	err   error
}

func (s stubMetrics) NodeMetrics(context.Context) (map[string]kube.Usage, error) {
	return s.nodes, s.err
}

func (s stubMetrics) PodMetrics(context.Context) ([]kube.PodUsage, error) {
	return s.pods, s.err
}

func testNode(name string, cpu, mem string, conds ...v1.NodeCondition) *v1.Node {
	return &v1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{"node.kubernetes.io/instance-type": "m5.large"},
		},
		Status: v1.NodeStatus{
			Capacity: v1.ResourceList{
				v1.ResourceCPU:    resource.MustParse(cpu),
				v1.ResourceMemory: resource.MustParse(mem),
			},
			Conditions: conds,
		},
	}
}

func testPod(ns, name, node string, restarts int32, cpuLimit, memLimit string) *v1.Pod {
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
		Spec: v1.PodSpec{
			NodeName: node,
			Containers: []v1.Container{{
				Name:  "app",
				Image: "nginx:1.27",
				Resources: v1.ResourceRequirements{
					Limits: v1.ResourceList{
						v1.ResourceCPU:    resource.MustParse(cpuLimit),
						v1.ResourceMemory: resource.MustParse(memLimit),
					},
				},
			}},
		},
		Status: v1.PodStatus{
			Phase:             v1.PodRunning,
			ContainerStatuses: []v1.ContainerStatus{{Name: "app", RestartCount: restarts}},
		},
	}
}

func TestCollectComputesPercentages(t *testing.T) {
	client := fake.NewSimpleClientset(
		testNode("node-a", "4", "8Gi",
			v1.NodeCondition{Type: v1.NodeDiskPressure, Status: v1.ConditionTrue},
			v1.NodeCondition{Type: v1.NodeReady, Status: v1.ConditionTrue},
		),
		testNode("node-b", "2", "4Gi"),
		testPod("shop", "web", "node-a", 3, "500m", "256Mi"),
	)
	metrics := stubMetrics{
		nodes: map[string]kube.Usage{
			"node-a": {CPU: 2, Memory: 4 * 1024 * 1024 * 1024},
			"node-b": {CPU: 1, Memory: 1 * 1024 * 1024 * 1024},
		},
		pods: []kube.PodUsage{{Namespace: "shop", Name: "web", Usage: kube.Usage{CPU: 0.25, Memory: 64 * 1024 * 1024}}},
	}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	got, err := NewCollector(client, metrics, clock, zap.NewNop()).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, clock.Now(), got.Timestamp)
	a := got.Nodes["node-a"]
	assert.InDelta(t, 50, a.CPUUsage, 1e-6)
	assert.InDelta(t, 50, a.MemoryUsage, 1e-6)
	assert.True(t, a.DiskPressure)
	assert.Equal(t, "Ready", a.Status, "status is the last condition type")
	assert.Equal(t, "m5.large", a.InstanceType)

	b := got.Nodes["node-b"]
	assert.Equal(t, "Unknown", b.Status)
	assert.InDelta(t, 25, b.MemoryUsage, 1e-6)

	cluster := got.Nodes[model.ClusterNode]
	assert.InDelta(t, 50, cluster.CPUUsage, 1e-6)
	assert.InDelta(t, 37.5, cluster.MemoryUsage, 1e-6)

	web := got.Pods["web"]
	assert.Equal(t, 3, web.Restarts)
	assert.Equal(t, "Running", web.Status)
	assert.InDelta(t, 50, web.CPUUsage, 1e-6)
	assert.InDelta(t, 25, web.MemoryUsage, 1e-6)
}

func TestCollectWithoutMetricsAPI(t *testing.T) {
	client := fake.NewSimpleClientset(testNode("node-a", "4", "8Gi"))
	metrics := stubMetrics{err: kube.ErrMetricsUnavailable}

	got, err := NewCollector(client, metrics, clockwork.NewFakeClock(), zap.NewNop()).Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.Nodes["node-a"].CPUUsage)
	assert.Zero(t, got.Nodes[model.ClusterNode].CPUUsage)
}

func TestCollectNilMetricsReader(t *testing.T) {
	client := fake.NewSimpleClientset(testNode("node-a", "4", "8Gi"))
	got, err := NewCollector(client, nil, clockwork.NewFakeClock(), zap.NewNop()).Collect(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got.Nodes, "node-a")
}

func TestMockShape(t *testing.T) {
	m := NewMock(clockwork.NewFakeClock(), 42)
	got, err := m.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 3, "two nodes plus the cluster aggregate")
	assert.Len(t, got.Pods, 2)
	for name, n := range got.Nodes {
		if name == model.ClusterNode {
			continue
		}
		assert.GreaterOrEqual(t, n.CPUUsage, 10.0)
		assert.Less(t, n.CPUUsage, 90.0)
	}
}

func TestPercentZeroCapacity(t *testing.T) {
	if got := percent(5, 0); got != 0 {
		t.Errorf("percent(5, 0) = %v, want 0", got)
	}
	if got := percent(1, 4); got != 25 {
		t.Errorf("percent(1, 4) = %v, want 25", got)
	}
}
