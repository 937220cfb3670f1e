package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"kagent/internal/model"
	"kagent/internal/predict"
	"kagent/internal/remediation"
	"kagent/internal/store"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedSource struct {
	clock clockwork.Clock
	cpu   float64
	calls atomic.Int32
	err   error
}

func (f *fixedSource) Collect(context.Context) (*model.ClusterMetrics, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	m := model.NewClusterMetrics(f.clock.Now())
	m.Nodes["node-a"] = model.NodeMetrics{CPUUsage: f.cpu, MemoryUsage: 40, Status: "Ready"}
	m.Nodes[model.ClusterNode] = model.NodeMetrics{CPUUsage: f.cpu, MemoryUsage: 40, Status: "Aggregate"}
	return m, nil
}

func newService(t *testing.T, clock clockwork.Clock, src *fixedSource, rem *remediation.Remediator, opts Options) *Service {
	t.Helper()
	p := predict.NewPredictor(model.DefaultThresholds(), clock, zap.NewNop())
	s, err := New(Agents{Source: src, Predictor: p, Remediator: rem}, opts, clock, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewRequiresSourceAndPredictor(t *testing.T) {
	_, err := New(Agents{}, Options{}, clockwork.NewFakeClockAt(t0), zap.NewNop())
	assert.Error(t, err)
}

func TestPredictNowCollectsFirst(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	src := &fixedSource{clock: clock, cpu: 95}
	s := newService(t, clock, src, nil, Options{})

	assert.Nil(t, s.CurrentMetrics())
	assert.Nil(t, s.LatestPrediction())

	pred, err := s.PredictNow(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())
	require.NotEmpty(t, pred.Issues)

	latest := s.LatestPrediction()
	require.NotNil(t, latest)
	assert.Equal(t, pred.Timestamp, latest.Timestamp)

	st := s.Status()
	assert.False(t, st.Running)
	require.NotNil(t, st.LastPrediction)
	require.NotNil(t, st.LastCollection)
	assert.Nil(t, st.LastRemediation)

	// A second prediction reuses the current snapshot.
	_, err = s.PredictNow(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestPredictNowSurfacesCollectError(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	src := &fixedSource{clock: clock, err: errors.New("apiserver down")}
	s := newService(t, clock, src, nil, Options{})

	_, err := s.PredictNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiserver down")
	assert.Nil(t, s.LatestPrediction())
}

func TestPredictNowRemediatesIssues(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	rem, err := remediation.NewRemediator(nil, remediation.Options{Mock: true}, clock, zap.NewNop())
	require.NoError(t, err)
	s := newService(t, clock, &fixedSource{clock: clock, cpu: 95}, rem, Options{UseMock: true})

	pred, err := s.PredictNow(context.Background())
	require.NoError(t, err)

	hist := rem.History(0, 0)
	assert.Len(t, hist, len(pred.Issues))
	assert.NotNil(t, s.Status().LastRemediation)

	tr := s.Trends(24)
	assert.Equal(t, 1, tr.TotalPredictions)
	// node-a and the cluster aggregate both run hot.
	assert.Equal(t, 2, tr.IssueTrends[model.IssueHighCPU])
	assert.Equal(t, len(pred.Issues), tr.RemediationTrends["mock"])
}

func TestPredictNowSkipsRemediationWhenAutoOff(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	rem, err := remediation.NewRemediator(nil, remediation.Options{}, clock, zap.NewNop())
	require.NoError(t, err)
	s := newService(t, clock, &fixedSource{clock: clock, cpu: 95}, rem, Options{})

	_, err = s.PredictNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rem.History(0, 0))
	assert.False(t, s.Status().AutoRemediate)
}

func TestTrendsWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	src := &fixedSource{clock: clock, cpu: 95}
	s := newService(t, clock, src, nil, Options{})
	ctx := context.Background()

	_, err := s.PredictNow(ctx)
	require.NoError(t, err)
	clock.Advance(3 * time.Hour)
	require.NoError(t, s.CollectNow(ctx))
	_, err = s.PredictNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Trends(2).TotalPredictions)
	assert.Equal(t, 2, s.Trends(24).TotalPredictions)
	assert.Equal(t, 24, s.Trends(0).Hours)

	recs := s.Predictions(0)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Timestamp.After(recs[1].Timestamp))
	assert.Len(t, s.Predictions(1), 1)
}

func TestMetricsHistoryUsesClusterEntry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	src := &fixedSource{clock: clock, cpu: 30}
	s := newService(t, clock, src, nil, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CollectNow(ctx))
		_, err := s.PredictNow(ctx)
		require.NoError(t, err)
		src.cpu += 10
		clock.Advance(time.Hour)
	}

	h := s.MetricsHistory(24 * time.Hour)
	require.Len(t, h.CPUUsage, 3)
	assert.Equal(t, 30.0, h.CPUUsage[0].Value)
	assert.Equal(t, 50.0, h.CPUUsage[2].Value)
	assert.Equal(t, 40.0, h.MemoryUsage[1].Value)

	// The window ends now, so only the last snapshot is inside 90 minutes.
	short := s.MetricsHistory(90 * time.Minute)
	require.Len(t, short.CPUUsage, 1)
	assert.Equal(t, 50.0, short.CPUUsage[0].Value)
}

func TestPredictionRecordsPersist(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := clockwork.NewFakeClockAt(t0)
	src := &fixedSource{clock: clock, cpu: 95}
	s := newService(t, clock, src, nil, Options{Store: st})
	_, err = s.PredictNow(context.Background())
	require.NoError(t, err)

	again := newService(t, clock, src, nil, Options{Store: st})
	tr := again.Trends(24)
	assert.Equal(t, 1, tr.TotalPredictions)
	assert.Equal(t, 2, tr.IssueTrends[model.IssueHighCPU])
}

func TestRunLoopsStopOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClockAt(t0)
	src := &fixedSource{clock: clock, cpu: 20}
	s := newService(t, clock, src, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.LatestPrediction() != nil }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Running())
	assert.Error(t, s.Run(ctx), "second Run must be refused")

	before := src.calls.Load()
	require.Eventually(t, func() bool {
		clock.Advance(DefaultMetricsInterval)
		return src.calls.Load() > before
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, s.Running())
}
