package collect

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"kagent/internal/kube"
	"kagent/internal/model"
)

// Mock generates plausible random snapshots for two nodes and two pods.
type Mock struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock clockwork.Clock
}

func NewMock(clock clockwork.Clock, seed uint64) *Mock {
	return &Mock{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), clock: clock}
}

func (m *Mock) Collect(_ context.Context) (*model.ClusterMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := model.NewClusterMetrics(m.clock.Now())
	var sumCPU, sumMem float64
	for i := 0; i < 2; i++ {
		nm := model.NodeMetrics{
			CPUUsage:       m.uniform(10, 90),
			MemoryUsage:    m.uniform(20, 80),
			Status:         "Ready",
			DiskPressure:   m.rng.Float64() > 0.9,
			MemoryPressure: m.rng.Float64() > 0.95,
			PIDPressure:    m.rng.Float64() > 0.98,
			NetworkIO:      model.NetworkIO{In: m.uniform(1000, 10000), Out: m.uniform(1000, 10000)},
			InstanceType:   "m5.large",
		}
		sumCPU += nm.CPUUsage
		sumMem += nm.MemoryUsage
		out.Nodes[fmt.Sprintf("mock-node-%d", i)] = nm
	}
	out.Nodes[model.ClusterNode] = model.NodeMetrics{
		CPUUsage:    sumCPU / 2,
		MemoryUsage: sumMem / 2,
		Status:      "Aggregate",
	}

	for i := 0; i < 2; i++ {
		restarts := 0
		if m.rng.Float64() > 0.8 {
			restarts = m.rng.IntN(11)
		}
		out.Pods[fmt.Sprintf("mock-pod-%d", i)] = model.PodMetrics{
			Namespace:   "default",
			Node:        fmt.Sprintf("mock-node-%d", i),
			Status:      "Running",
			Restarts:    restarts,
			CPUUsage:    m.uniform(5, 50),
			MemoryUsage: m.uniform(10, 60),
		}
	}
	return out, nil
}

func (m *Mock) uniform(lo, hi float64) float64 {
	return lo + m.rng.Float64()*(hi-lo)
}

// MockInventory is a small fixed cluster used when no cluster is reachable.
// It deliberately carries a few security and sizing problems.
func MockInventory(now time.Time) *model.Inventory {
	nonRoot := true
	uid := int64(1000)
	inv := model.NewInventory(nil)
	inv.CollectedAt = now
	inv.Namespaces = []model.Namespace{
		{Name: "default"}, {Name: "application"}, {Name: "monitoring"}, {Name: "kube-system"},
	}
	for i := 0; i < 2; i++ {
		inv.Nodes = append(inv.Nodes, model.Node{
			Name:           fmt.Sprintf("mock-node-%d", i),
			Ready:          true,
			Status:         "Ready",
			InstanceType:   "m5.large",
			CPUCapacity:    2,
			MemoryCapacity: 8 * gib,
		})
	}
	inv.Pods = []model.Pod{
		{
			Namespace: "default", Name: "web-6f7c9d-abcde", Node: "mock-node-0", Phase: "Running",
			OwnerKind: "ReplicaSet", OwnerName: "web-6f7c9d",
			Containers: []model.Container{{Name: "nginx", Image: "nginx:latest", CPURequest: 0.5, MemoryRequest: 512 * mib}},
		},
		{
			Namespace: "application", Name: "api-5d8b4c-fghij", Node: "mock-node-1", Phase: "Running",
			OwnerKind: "ReplicaSet", OwnerName: "api-5d8b4c",
			Containers: []model.Container{{
				Name: "api", Image: "registry.example.com/api:1.4.2",
				RunAsNonRoot: &nonRoot, RunAsUser: &uid, HasLimits: true,
				CPURequest: 1, MemoryRequest: 1 * gib, CPULimit: 2, MemoryLimit: 2 * gib,
			}},
		},
		{
			Namespace: "monitoring", Name: "node-exporter-klmno", Node: "mock-node-0", Phase: "Running",
			OwnerKind: "DaemonSet", OwnerName: "node-exporter", HostNetwork: true, HostPID: true,
			Containers: []model.Container{{Name: "exporter", Image: "prom/node-exporter:v1.8.1", Privileged: true,
				HasLimits: true, CPURequest: 0.1, MemoryRequest: 64 * mib, CPULimit: 0.2, MemoryLimit: 128 * mib}},
		},
		{
			Namespace: "kube-system", Name: "kube-proxy-pqrst", Node: "mock-node-1", Phase: "Running",
			OwnerKind: "DaemonSet", OwnerName: "kube-proxy", HostNetwork: true,
			Containers: []model.Container{{Name: "kube-proxy", Image: "registry.k8s.io/kube-proxy:v1.30.0", Privileged: true}},
		},
	}
	inv.Deployments = []model.Deployment{
		{Namespace: "default", Name: "web", Replicas: 3, Ready: 3, Images: []string{"nginx:latest"}},
		{Namespace: "application", Name: "api", Replicas: 2, Ready: 2, Images: []string{"registry.example.com/api:1.4.2"}},
	}
	inv.NetworkPolicies = []model.NetworkPolicy{{Namespace: "application", Name: "default-deny"}}
	inv.Secrets = []model.Secret{
		{Namespace: "default", Name: "db-credentials", Type: "Opaque", KeyCount: 2},
		{Namespace: "default", Name: "registry-pull", Type: "kubernetes.io/dockerconfigjson", KeyCount: 1},
	}
	inv.PVCs = []model.PersistentVolumeClaim{
		{Namespace: "application", Name: "data-api", StorageClass: "gp3", RequestedSize: "20Gi", RequestedBytes: 20 * gib},
	}
	inv.ClusterRoleBindings = []model.ClusterRoleBinding{
		{Name: "ops-admin", RoleName: "cluster-admin", Subjects: []string{"User:ops@example.com"}},
		{Name: "cluster-admin", RoleName: "cluster-admin", Subjects: []string{"Group:system:masters"}},
	}
	return inv
}

const (
	mib = 1024 * 1024
	gib = 1024 * mib
)

// MockUsage reports usage derived from a fixed inventory: pods use a fifth of
// their requests and nodes sit at 30% of capacity.
type MockUsage struct {
	Inventory *model.Inventory
}

func (m MockUsage) NodeMetrics(_ context.Context) (map[string]kube.Usage, error) {
	out := make(map[string]kube.Usage, len(m.Inventory.Nodes))
	for _, n := range m.Inventory.Nodes {
		out[n.Name] = kube.Usage{CPU: n.CPUCapacity * 0.3, Memory: n.MemoryCapacity * 0.3}
	}
	return out, nil
}

func (m MockUsage) PodMetrics(_ context.Context) ([]kube.PodUsage, error) {
	out := make([]kube.PodUsage, 0, len(m.Inventory.Pods))
	for _, p := range m.Inventory.Pods {
		cpu, mem := p.Requests()
		out = append(out, kube.PodUsage{
			Namespace: p.Namespace,
			Name:      p.Name,
			Usage:     kube.Usage{CPU: cpu * 0.2, Memory: mem * 0.2},
		})
	}
	return out, nil
}
