package cost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"kagent/internal/collect"
	apperrors "kagent/internal/errors"
	"kagent/internal/model"
	"kagent/internal/store"
	"kagent/internal/trend"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockOptimizer(t *testing.T, opts Options) (*Optimizer, *model.Inventory, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	inv := collect.MockInventory(clock.Now())
	source := func(context.Context) (*model.Inventory, error) { return inv, nil }
	o, err := NewOptimizer(source, collect.MockUsage{Inventory: inv}, opts, clock, zap.NewNop())
	require.NoError(t, err)
	return o, inv, clock
}

func byType(s []model.CostSuggestion, kind, name string) (model.CostSuggestion, bool) {
	for _, x := range s {
		if x.ResourceType == kind && x.Name == name {
			return x, true
		}
	}
	return model.CostSuggestion{}, false
}

func TestAnalyzeMockCluster(t *testing.T) {
	o, _, _ := newMockOptimizer(t, Options{})
	got, err := o.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, model.ResourceNodeGroup, got[0].ResourceType, "sorted by savings")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].EstimatedSavings.TotalMonthly, got[i].EstimatedSavings.TotalMonthly)
	}

	ng, ok := byType(got, model.ResourceNodeGroup, "m5.large")
	require.True(t, ok)
	assert.Equal(t, 69.12, ng.EstimatedSavings.TotalMonthly)
	assert.Equal(t, 1, ng.EstimatedSavings.NodesReduced)
	assert.Equal(t, 1, ng.SuggestedAllocation["node_count"])
	assert.Equal(t, model.PriorityMedium, ng.Priority)
	assert.Equal(t, nodeConfidence, ng.Confidence)

	web, ok := byType(got, model.ResourceDeployment, "web")
	require.True(t, ok, "ReplicaSet owner resolves to its Deployment")
	assert.Equal(t, "default", web.Namespace)
	assert.Equal(t, 12.98, web.EstimatedSavings.TotalMonthly)
	assert.Equal(t, 0.12, web.SuggestedAllocation["cpu_request"])
	assert.Equal(t, float64(minMemoryRequest), web.SuggestedAllocation["memory_request"])
	assert.Equal(t, model.PriorityMedium, web.Priority)
	assert.Equal(t, model.SuggestionID(model.ResourceDeployment, "default", "web"), web.ID)

	_, ok = byType(got, model.ResourceDaemonSet, "node-exporter")
	assert.False(t, ok, "requests already at the floor")

	total := o.TotalSavings()
	assert.InDelta(t, 108.09, total.Monthly, 0.011)
	assert.InDelta(t, total.Monthly*12, total.Annual, 0.01)
}

func TestAnalyzeConfidenceGrowsWithSamples(t *testing.T) {
	o, _, clock := newMockOptimizer(t, Options{WindowDays: 1})
	for i := 0; i < 24; i++ {
		require.NoError(t, o.CollectMetrics(context.Background()))
		clock.Advance(time.Hour)
	}
	got, err := o.Analyze(context.Background())
	require.NoError(t, err)
	web, ok := byType(got, model.ResourceDeployment, "web")
	require.True(t, ok)
	assert.Equal(t, 0.9, web.Confidence)
}

func TestCollectMetricsPrunesWindow(t *testing.T) {
	o, _, clock := newMockOptimizer(t, Options{WindowDays: 1})
	require.NoError(t, o.CollectMetrics(context.Background()))
	clock.Advance(25 * time.Hour)
	require.NoError(t, o.CollectMetrics(context.Background()))
	assert.Len(t, o.pods["default/web-6f7c9d-abcde"], 1)
	assert.Len(t, o.nodes["mock-node-0"], 1)
}

func TestAnalyzeQuotas(t *testing.T) {
	inv := model.NewInventory(nil)
	inv.Pods = []model.Pod{
		{Namespace: "batch", Name: "a", Phase: "Running", Containers: []model.Container{{CPURequest: 3, MemoryRequest: gib}}},
		{Namespace: "batch", Name: "b", Phase: "Running", Containers: []model.Container{{CPURequest: 2, MemoryRequest: gib}}},
		{Namespace: "batch", Name: "c", Phase: "Pending", Containers: []model.Container{{CPURequest: 50}}},
		{Namespace: "small", Name: "d", Phase: "Running", Containers: []model.Container{{CPURequest: 1, MemoryRequest: gib}}},
		{Namespace: "kube-system", Name: "e", Phase: "Running", Containers: []model.Container{{CPURequest: 8}}},
		{Namespace: "limited", Name: "f", Phase: "Running", Containers: []model.Container{{CPURequest: 8}}},
	}
	inv.ResourceQuotas = []model.ResourceQuota{{Namespace: "limited", Name: "q"}}

	got := analyzeQuotas(inv)
	require.Len(t, got, 1)
	q := got[0]
	assert.Equal(t, "batch", q.Namespace)
	assert.Equal(t, "6", q.SuggestedAllocation["requests.cpu"])
	assert.Equal(t, "3Gi", q.SuggestedAllocation["requests.memory"])
	assert.Equal(t, quotaConfidence, q.Confidence)
	assert.Zero(t, q.EstimatedSavings.TotalMonthly)
}

func TestSuggestionsFilterAndHistory(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	o, _, clock := newMockOptimizer(t, Options{Store: st})
	assert.Empty(t, o.Suggestions(0, ""))
	assert.Equal(t, model.TotalSavings{}, o.TotalSavings())

	_, err = o.Analyze(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = o.Analyze(context.Background())
	require.NoError(t, err)

	assert.Len(t, o.Suggestions(2, ""), 2)
	assert.Len(t, o.Suggestions(0, string(model.PriorityMedium)), 3)
	assert.Empty(t, o.Suggestions(0, string(model.PriorityHigh)))

	hist := o.History(0)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Timestamp.After(hist[1].Timestamp))
	assert.Nil(t, hist[1].SavingsChange)
	require.NotNil(t, hist[0].SavingsChange)
	assert.Equal(t, trend.DirectionFlat, hist[0].SavingsChange.Direction)
	assert.Equal(t, hist[1].TotalSavings.Monthly, hist[0].SavingsChange.From)

	inv := collect.MockInventory(clock.Now())
	reopened, err := NewOptimizer(func(context.Context) (*model.Inventory, error) { return inv, nil },
		nil, Options{Store: st}, clock, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, reopened.History(0), 2)
	assert.Equal(t, o.TotalSavings(), reopened.TotalSavings())
}

func TestAnalysisAndUtilization(t *testing.T) {
	o, _, _ := newMockOptimizer(t, Options{})
	_, err := o.Analyze(context.Background())
	require.NoError(t, err)

	a := o.Analysis()
	assert.Equal(t, 138.24, a.Breakdown.Compute)
	assert.Equal(t, 2.0, a.Breakdown.Storage)
	assert.Equal(t, 140.24, a.MonthlyCost)
	assert.Equal(t, 30.0, a.Efficiency)
	assert.Equal(t, SavingsPercent(a.MonthlyCost, a.MonthlyCost-a.PotentialSavings), a.SavingsPercentage)

	u := o.Utilization()
	require.Contains(t, u.Namespaces, "default")
	assert.Equal(t, 20.0, u.Namespaces["default"].CPUUtilization)
	assert.Equal(t, 0.5, u.Namespaces["default"].CPURequested)
	require.Contains(t, u.Nodes, "mock-node-0")
	assert.InDelta(t, 0.6, u.Nodes["mock-node-0"].CPUUsed, 1e-9)

	d := o.CloudDetails()
	assert.Equal(t, "aws", d.Provider)
	assert.Equal(t, 2, d.NodesByType["m5.large"])
	assert.Contains(t, d.InstanceTypes, "m5.large")
}

func TestNewOptimizerRejectsUnknownProvider(t *testing.T) {
	_, err := NewOptimizer(nil, nil, Options{Provider: "oracle"}, clockwork.NewFakeClock(), zap.NewNop())
	assert.Error(t, err)
}

func TestAnalyzeInventoryError(t *testing.T) {
	source := func(context.Context) (*model.Inventory, error) { return nil, errors.New("boom") }
	o, err := NewOptimizer(source, nil, Options{}, clockwork.NewFakeClock(), zap.NewNop())
	require.NoError(t, err)
	_, err = o.Analyze(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestApply(t *testing.T) {
	replicas := int32(2)
	client := fake.NewSimpleClientset(&appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Template: corev1.PodTemplateSpec{Spec: corev1.PodSpec{
				Containers: []corev1.Container{{Name: "nginx", Image: "nginx:1.25"}},
			}},
		},
	})
	o, _, _ := newMockOptimizer(t, Options{Client: client})
	got, err := o.Analyze(context.Background())
	require.NoError(t, err)

	web, _ := byType(got, model.ResourceDeployment, "web")
	res, err := o.Apply(context.Background(), web.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	d, err := client.AppsV1().Deployments("default").Get(context.Background(), "web", metav1.GetOptions{})
	require.NoError(t, err)
	req := d.Spec.Template.Spec.Containers[0].Resources.Requests
	assert.Equal(t, int64(120), req.Cpu().MilliValue())
	assert.Equal(t, int64(minMemoryRequest), req.Memory().Value())

	ng, _ := byType(got, model.ResourceNodeGroup, "m5.large")
	res, err = o.Apply(context.Background(), ng.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusManual, res.Status)
	assert.Contains(t, res.Message, "manual action required")

	api, _ := byType(got, model.ResourceDeployment, "api")
	_, err = o.Apply(context.Background(), api.ID)
	var ae *apperrors.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.TypeExternal, ae.Type)

	_, err = o.Apply(context.Background(), "missing")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.TypeNotFound, ae.Type)
}

func TestApplyQuotaAndSimulated(t *testing.T) {
	s := model.CostSuggestion{
		ResourceType: model.ResourceResourceQuota,
		Namespace:    "batch",
		Name:         "batch-quota",
		SuggestedAllocation: map[string]any{
			"requests.cpu":    "6",
			"requests.memory": "3Gi",
		},
	}
	s.ID = model.SuggestionID(s.ResourceType, s.Namespace, s.Name)

	client := fake.NewSimpleClientset()
	o, _, clock := newMockOptimizer(t, Options{Client: client})
	o.runs.Push(model.CostRun{Timestamp: clock.Now(), Suggestions: []model.CostSuggestion{s}})

	res, err := o.Apply(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	q, err := client.CoreV1().ResourceQuotas("batch").Get(context.Background(), "batch-quota", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, q.Spec.Hard[corev1.ResourceName("requests.memory")].Equal(resource.MustParse("3Gi")))

	sim, _, clock2 := newMockOptimizer(t, Options{})
	sim.runs.Push(model.CostRun{Timestamp: clock2.Now(), Suggestions: []model.CostSuggestion{s}})
	res, err = sim.Apply(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSimulated, res.Status)
}
