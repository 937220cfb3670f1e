package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kagent/internal/collect"
	"kagent/internal/history"
	"kagent/internal/model"
	"kagent/internal/store"
)

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(v int64) *int64 { return &v }

func typesOf(issues []model.SecurityIssue) []string {
	var out []string
	for _, is := range issues {
		out = append(out, is.Type)
	}
	return out
}

func TestEvaluatePodRules(t *testing.T) {
	inv := model.NewInventory(nil)
	inv.Pods = []model.Pod{
		{
			Namespace: "shop", Name: "web",
			Containers: []model.Container{{Name: "app", Image: "nginx", Privileged: true}},
		},
		{
			Namespace: "shop", Name: "api", HostPID: true,
			Containers: []model.Container{{
				Name: "api", Image: "api:1.0", HasLimits: true,
				RunAsNonRoot: boolPtr(true), RunAsUser: int64Ptr(0),
			}},
		},
		{
			Namespace: "shop", Name: "safe",
			Containers: []model.Container{{
				Name: "safe", Image: "safe:2.1", HasLimits: true,
				RunAsNonRoot: boolPtr(true), RunAsUser: int64Ptr(1000),
			}},
		},
	}

	res := Evaluate(inv, nil)
	assert.ElementsMatch(t, []string{TypeImageLatest, TypePrivileged}, typesOf(res.Vulnerabilities))
	assert.ElementsMatch(t,
		[]string{TypeMissingLimits, TypeRunAsRoot, TypeRunAsRoot, TypeHostPID},
		typesOf(res.Misconfigs),
	)
	for _, is := range res.Misconfigs {
		assert.NotEqual(t, "Pod/safe", is.Resource)
	}
}

func TestEvaluateComplianceRules(t *testing.T) {
	inv := model.NewInventory(nil)
	inv.Namespaces = []model.Namespace{{Name: "open"}, {Name: "locked"}, {Name: "kube-system"}}
	inv.NetworkPolicies = []model.NetworkPolicy{{Namespace: "locked", Name: "deny"}}
	inv.Secrets = []model.Secret{
		{Namespace: "open", Name: "db", Type: "Opaque"},
		{Namespace: "open", Name: "sa", Type: "kubernetes.io/service-account-token"},
		{Namespace: "kube-system", Name: "internal", Type: "Opaque"},
	}
	inv.ClusterRoleBindings = []model.ClusterRoleBinding{
		{Name: "ops", RoleName: "cluster-admin", Subjects: []string{"User:alice", "Group:system:masters"}},
		{Name: "view", RoleName: "view", Subjects: []string{"User:bob"}},
	}

	res := Evaluate(inv, collect.SystemNamespaces)
	require.Len(t, res.ComplianceIssues, 3)
	got := map[string]string{}
	for _, is := range res.ComplianceIssues {
		got[is.Type] = is.Resource
	}
	assert.Equal(t, "Namespace/open", got[TypeNoNetworkPolicy])
	assert.Equal(t, "Secret/db", got[TypePlaintextSecrets])
	assert.Equal(t, "ClusterRoleBinding/ops", got[TypeClusterAdminBinding])
}

func TestEvaluateScore(t *testing.T) {
	inv := model.NewInventory(nil)
	res := Evaluate(inv, nil)
	assert.Equal(t, 100, res.Score)
	assert.NotNil(t, res.Vulnerabilities)

	for i := 0; i < 30; i++ {
		inv.Secrets = append(inv.Secrets, model.Secret{Namespace: "a", Name: "s", Type: "Opaque"})
	}
	res = Evaluate(inv, nil)
	assert.Equal(t, 30, res.Details.High)
	assert.Equal(t, 0, res.Score, "score is floored at zero")
}

func TestScannerHistoryAndTrend(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	inv := collect.MockInventory(clock.Now())
	source := func(context.Context) (*model.Inventory, error) { return inv, nil }

	s, err := NewScanner(source, collect.SystemNamespaces, st, clock, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, s.Latest())

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, history.FirstRun, first.Trend)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.TotalIssues, len(first.All()))

	clock.Advance(time.Hour)
	inv.Secrets = nil
	second, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, history.Improving, second.Trend)
	assert.Same(t, second, s.Latest())

	hist := s.History(1)
	require.Len(t, hist, 1)
	assert.Equal(t, second.ID, hist[0].ID)

	reopened, err := NewScanner(source, nil, st, clock, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, reopened.History(0), 2)
	assert.Equal(t, second.ID, reopened.Latest().ID)
}

func TestScannerInventoryError(t *testing.T) {
	source := func(context.Context) (*model.Inventory, error) { return nil, errors.New("boom") }
	s, err := NewScanner(source, nil, nil, clockwork.NewFakeClock(), zap.NewNop())
	require.NoError(t, err)
	_, err = s.Scan(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestFilterBySeverity(t *testing.T) {
	issues := []model.SecurityIssue{
		{Type: "a", Severity: model.SeverityHigh},
		{Type: "b", Severity: model.SeverityMedium},
	}
	assert.Len(t, FilterBySeverity(issues, ""), 2)
	assert.Equal(t, []string{"a"}, typesOf(FilterBySeverity(issues, "HIGH")))
	assert.Empty(t, FilterBySeverity(issues, "critical"))
}
