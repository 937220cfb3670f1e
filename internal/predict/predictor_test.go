package predict

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kagent/internal/model"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(ts time.Time, nodes map[string]model.NodeMetrics, pods map[string]model.PodMetrics) *model.ClusterMetrics {
	m := model.NewClusterMetrics(ts)
	for k, v := range nodes {
		m.Nodes[k] = v
	}
	for k, v := range pods {
		m.Pods[k] = v
	}
	return m
}

func issueTypes(p model.Prediction) map[string][]string {
	out := map[string][]string{}
	for _, is := range p.Issues {
		out[is.Type] = append(out[is.Type], is.Component)
	}
	return out
}

func findIssue(p model.Prediction, typ, component string) (model.Issue, bool) {
	for _, is := range p.Issues {
		if is.Type == typ && is.Component == component {
			return is, true
		}
	}
	return model.Issue{}, false
}

func TestAnalyzeThresholds(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	p := NewPredictor(model.DefaultThresholds(), clock, zap.NewNop())

	pred := p.Analyze(snapshot(t0,
		map[string]model.NodeMetrics{
			"hot":  {CPUUsage: 95, MemoryUsage: 85, DiskPressure: true},
			"calm": {CPUUsage: 20, MemoryUsage: 30, PIDPressure: true},
			"edge": {CPUUsage: 80, MemoryUsage: 90},
		},
		map[string]model.PodMetrics{
			"flappy": {Restarts: 5},
			"steady": {Restarts: 4},
		},
	))

	cpu, ok := findIssue(pred, model.IssueHighCPU, "hot")
	require.True(t, ok)
	assert.Equal(t, model.SeverityCritical, cpu.Severity)
	assert.Equal(t, model.IssueID(model.IssueHighCPU, "hot"), cpu.ID)
	assert.Equal(t, t0, cpu.Timestamp)

	edgeCPU, ok := findIssue(pred, model.IssueHighCPU, "edge")
	require.True(t, ok, "thresholds are inclusive")
	assert.Equal(t, model.SeverityWarning, edgeCPU.Severity)

	edgeMem, ok := findIssue(pred, model.IssueHighMemory, "edge")
	require.True(t, ok)
	assert.Equal(t, model.SeverityCritical, edgeMem.Severity)

	types := issueTypes(pred)
	assert.Equal(t, []string{"flappy"}, types[model.IssueFrequentRestarts])
	assert.Equal(t, []string{"hot"}, types[model.IssueDiskPressure])
	assert.Equal(t, []string{"calm"}, types[model.IssuePIDPressure])
	assert.Empty(t, types[model.IssueCPUTrend], "a single snapshot has no trend")
	assert.False(t, pred.MLModelUsed)
	assert.Len(t, pred.Suggestions, len(pred.Issues))
}

func TestAnalyzeTrendAndCorrelation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	p := NewPredictor(model.DefaultThresholds(), clock, zap.NewNop())

	// an old snapshot outside the 30 minute window must not dampen the trend
	p.Analyze(snapshot(t0, map[string]model.NodeMetrics{"n1": {CPUUsage: 70, MemoryUsage: 70}}, nil))
	clock.Advance(time.Hour)

	var pred model.Prediction
	for i, v := range []float64{10, 20, 30, 40} {
		if i > 0 {
			clock.Advance(time.Minute)
		}
		pred = p.Analyze(snapshot(clock.Now(), map[string]model.NodeMetrics{"n1": {CPUUsage: v, MemoryUsage: v / 2}}, nil))
	}

	cpuTrend, ok := findIssue(pred, model.IssueCPUTrend, "n1")
	require.True(t, ok)
	assert.InDelta(t, 10, cpuTrend.Details["slope"], 1e-9)
	assert.Equal(t, []float64{10, 20, 30, 40}, cpuTrend.Details["history"])

	_, ok = findIssue(pred, model.IssueMemoryTrend, "n1")
	assert.False(t, ok, "memory slope of 5 is not above the threshold")

	corr, ok := findIssue(pred, model.IssueResourceCorrelation, "n1")
	require.True(t, ok)
	assert.InDelta(t, 1, corr.Details["correlation"], 1e-9)

	tp := pred.Trends.CPUTrends["n1"]
	assert.InDelta(t, 10, tp.Slope, 1e-9)
	assert.Equal(t, 40.0, tp.Current)
	assert.InDelta(t, 25, tp.Average, 1e-9)
	assert.Equal(t, model.Change{From: 10, To: 40, Delta: 30, DeltaPercent: 300, Direction: "up"}, tp.Change)
	assert.InDelta(t, 1, pred.Correlations.CPUMemory["n1"], 1e-9)
	assert.Equal(t, 0.0, pred.Correlations.Pressure["n1"]["disk_memory"], "constant series correlate as 0")
}

func TestAnalyzeRestartTrend(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	p := NewPredictor(model.DefaultThresholds(), clock, zap.NewNop())
	p.Analyze(snapshot(clock.Now(), nil, map[string]model.PodMetrics{"web": {Restarts: 1}}))
	clock.Advance(time.Minute)
	pred := p.Analyze(snapshot(clock.Now(), nil, map[string]model.PodMetrics{"web": {Restarts: 3}}))

	rt := pred.Trends.RestartTrends["web"]
	assert.InDelta(t, 2, rt.Slope, 1e-9)
	assert.Equal(t, 3.0, rt.Current)
}

func TestAnalyzeNilSnapshot(t *testing.T) {
	p := NewPredictor(model.DefaultThresholds(), clockwork.NewFakeClockAt(t0), zap.NewNop())
	pred := p.Analyze(nil)
	assert.Empty(t, pred.Issues)
	assert.NotNil(t, pred.Issues)
	assert.Equal(t, 1.0, pred.Confidence)
}

func TestHistoryBounded(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	p := NewPredictor(model.DefaultThresholds(), clock, zap.NewNop())
	for i := 0; i < HistorySize+5; i++ {
		p.Analyze(snapshot(clock.Now(), nil, nil))
	}
	assert.Len(t, p.History(), HistorySize)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		issues []model.Issue
		want   float64
	}{
		{"no issues", nil, 1},
		{"one critical cpu", []model.Issue{{Type: model.IssueHighCPU, Severity: model.SeverityCritical}}, 0.4},
		{"one warning trend", []model.Issue{{Type: model.IssueCPUTrend, Severity: model.SeverityWarning}}, 0.75},
		{"many clamps to zero", []model.Issue{
			{Type: model.IssueHighCPU, Severity: model.SeverityCritical},
			{Type: model.IssueHighMemory, Severity: model.SeverityCritical},
			{Type: model.IssueDiskPressure, Severity: model.SeverityWarning},
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.issues), 1e-9)
		})
	}
}

func TestSuggest(t *testing.T) {
	th := model.DefaultThresholds()
	s, ok := Suggest(model.Issue{Type: model.IssueHighCPU, Component: "n1", Details: map[string]any{"usage": 95.0}}, th)
	require.True(t, ok)
	assert.Equal(t, "scale_cpu", s.Action)
	assert.Equal(t, 70.0, s.Details["target_usage"])
	assert.Equal(t, 95.0, s.Details["current_usage"])

	s, ok = Suggest(model.Issue{Type: model.IssueFrequentRestarts, Component: "web", Details: map[string]any{"restart_count": 7}}, th)
	require.True(t, ok)
	assert.Equal(t, "investigate_restarts", s.Action)
	assert.Equal(t, 5, s.Details["threshold"])

	_, ok = Suggest(model.Issue{Type: model.IssueMLAnomaly, Component: "n1"}, th)
	assert.False(t, ok)
}
