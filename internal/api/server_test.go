package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kagent/internal/backup"
	"kagent/internal/collect"
	"kagent/internal/config"
	"kagent/internal/cost"
	"kagent/internal/model"
	"kagent/internal/predict"
	"kagent/internal/remediation"
	"kagent/internal/security"
	"kagent/internal/service"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	clock clockwork.Clock
	err   error
}

func (s stubSource) Collect(context.Context) (*model.ClusterMetrics, error) {
	if s.err != nil {
		return nil, s.err
	}
	now := t0
	if s.clock != nil {
		now = s.clock.Now()
	}
	m := model.NewClusterMetrics(now)
	m.Nodes["worker-1"] = model.NodeMetrics{CPUUsage: 95, MemoryUsage: 40, Status: "Ready"}
	m.Nodes["worker-2"] = model.NodeMetrics{CPUUsage: 20, MemoryUsage: 30, Status: "Ready", DiskPressure: true}
	m.Nodes[model.ClusterNode] = model.NodeMetrics{CPUUsage: 57.5, MemoryUsage: 35, Status: "Aggregate"}
	m.Pods["web-1"] = model.PodMetrics{Namespace: "shop", Node: "worker-1", Status: "Running", Restarts: 1}
	return m, nil
}

type fixture struct {
	srv   *Server
	h     http.Handler
	clock *clockwork.FakeClock
	a     Agents
}

func newFixture(t *testing.T, cfg config.Server, src collect.Source) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	log := zap.NewNop()
	inv := collect.MockInventory(t0)
	invFn := func(context.Context) (*model.Inventory, error) { return inv, nil }

	p := predict.NewPredictor(model.DefaultThresholds(), clock, log)
	scanner, err := security.NewScanner(invFn, nil, nil, clock, log)
	require.NoError(t, err)
	opt, err := cost.NewOptimizer(invFn, collect.MockUsage{Inventory: inv}, cost.Options{}, clock, log)
	require.NoError(t, err)
	backups, err := backup.NewManager(nil, nil, backup.Options{Dir: t.TempDir(), Mock: true, Seed: 7}, clock, log)
	require.NoError(t, err)
	t.Cleanup(backups.Close)
	rem, err := remediation.NewRemediator(nil, remediation.Options{}, clock, log)
	require.NoError(t, err)
	svc, err := service.New(service.Agents{Source: src, Predictor: p, Remediator: rem}, service.Options{}, clock, log)
	require.NoError(t, err)

	a := Agents{
		Service:    svc,
		Predictor:  p,
		Trainer:    predict.NewTrainer(p, nil, clock, log),
		Scanner:    scanner,
		Optimizer:  opt,
		Backups:    backups,
		Remediator: rem,
		Fallback:   collect.NewMock(clock, 1),
	}
	srv := NewServer(cfg, a, clock, log)
	return &fixture{srv: srv, h: srv.Handler(), clock: clock, a: a}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{})

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kagent_")
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{})
	rec := f.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[map[string]string](t, rec)["type"])
}

func TestPredictorMetricsView(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{clock: clockwork.NewFakeClockAt(t0)})

	rec := f.do(t, http.MethodGet, "/api/predictor/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Nodes map[string]map[string]any `json:"nodes"`
		Pods  map[string]map[string]any `json:"pods"`
	}](t, rec)
	w1 := got.Nodes["worker-1"]
	assert.Equal(t, 95.0, w1["cpu_usage"])
	assert.NotContains(t, w1, "instance_type")
	assert.Contains(t, got.Pods["web-1"], "restarts")
	assert.NotContains(t, got.Pods["web-1"], "namespace")
}

func TestPredictorMetricsFallsBackToMock(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{err: errors.New("no cluster")})

	rec := f.do(t, http.MethodGet, "/api/predictor/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[metricsView](t, rec)
	assert.Contains(t, got.Nodes, "mock-node-0")

	rec = f.do(t, http.MethodGet, "/api/predictor/predictions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.a.Predictor.History(), "fallback must not feed the live history")
}

func TestPredictionsComputedOnDemand(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{clock: clockwork.NewFakeClockAt(t0)})
	require.Nil(t, f.a.Service.LatestPrediction())

	rec := f.do(t, http.MethodGet, "/api/predictor/predictions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pred := decode[model.Prediction](t, rec)
	assert.NotEmpty(t, pred.Issues)
	assert.NotNil(t, f.a.Service.LatestPrediction())
}

func TestMetricsHistoryTimespan(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{clock: clockwork.NewFakeClockAt(t0)})
	_, err := f.a.Service.PredictNow(context.Background())
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/predictor/metrics/history?timespan=7d", "")
	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[model.MetricsHistory](t, rec)
	require.Len(t, h.CPUUsage, 1)
	assert.Equal(t, 57.5, h.CPUUsage[0].Value)

	for _, bad := range []string{"yesterday", "-1h", "0d", "3651d", "999999999999d", "87601h"} {
		rec = f.do(t, http.MethodGet, "/api/predictor/metrics/history?timespan="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestModelInfoAndTrain(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{})

	rec := f.do(t, http.MethodGet, "/api/predictor/model/info", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/predictor/model/train", `{"contamination":0.9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/predictor/model/train", `{"samples":2000000000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, f.a.Predictor.Model())

	rec = f.do(t, http.MethodPost, "/api/predictor/model/train", `{"contamination":0.1,"samples":200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.TrainResult](t, rec)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "train_20240301120000", res.JobID)

	rec = f.do(t, http.MethodGet, "/api/predictor/model/info", "")
	info := decode[model.ModelInfo](t, rec)
	assert.True(t, info.Trained)
}

func TestSecurityEndpoints(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{})

	rec := f.do(t, http.MethodGet, "/api/security/scan/results", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No security scans have been performed", decode[map[string]string](t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/api/security/scan/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	scan := decode[model.ScanResult](t, rec)
	assert.Positive(t, scan.TotalIssues)

	rec = f.do(t, http.MethodGet, "/api/security/vulnerabilities?severity=critical", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, is := range decode[[]model.SecurityIssue](t, rec) {
		assert.Equal(t, model.SeverityCritical, is.Severity)
	}

	rec = f.do(t, http.MethodGet, "/api/security/misconfigurations?severity=urgent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/security/scan/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[[]model.ScanSummary](t, rec)
	require.Len(t, hist, 1)
	assert.Equal(t, scan.ID, hist[0].ID)
}

func TestCostEndpoints(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{})

	rec := f.do(t, http.MethodGet, "/api/cost/suggestions?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sugg := decode[[]model.CostSuggestion](t, rec)
	require.Len(t, sugg, 2)

	rec = f.do(t, http.MethodGet, "/api/cost/suggestions?priority=urgent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/cost/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.a.Optimizer.History(0), 1, "analysis reuses the first run")

	rec = f.do(t, http.MethodPost, "/api/cost/optimize/"+sugg[0].ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cost.StatusSimulated, decode[model.ApplyResult](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/api/cost/optimize/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, path := range []string{"/api/cost/utilization", "/api/cost/history", "/api/cost/cloud/details"} {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, "").Code, path)
	}
}

func TestBackupLifecycle(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{})

	rec := f.do(t, http.MethodPost, "/api/backup/create", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/backup/create", `{"name":"nightly","namespaces":["shop"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	job := decode[model.BackupJob](t, rec)
	assert.Equal(t, model.JobCompleted, job.Status)

	rec = f.do(t, http.MethodGet, "/api/backup/list?status=completed", "")
	assert.Len(t, decode[[]model.BackupJob](t, rec), 1)
	rec = f.do(t, http.MethodGet, "/api/backup/list?status=failed", "")
	assert.Empty(t, decode[[]model.BackupJob](t, rec))

	rec = f.do(t, http.MethodGet, "/api/backup/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nightly", decode[model.BackupDetail](t, rec).Name)

	rec = f.do(t, http.MethodPost, "/api/backup/"+job.ID+"/restore", `{"restore_strategy":"create_only"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	restore := decode[model.RestoreJob](t, rec)
	assert.Equal(t, job.ID, restore.BackupID)

	rec = f.do(t, http.MethodPost, "/api/backup/unknown/restore", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/backup/restore/jobs", "")
	assert.Len(t, decode[[]model.RestoreJob](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/api/backup/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"deleted","id":"`+job.ID+`"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/backup/"+job.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackupSchedule(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{})

	rec := f.do(t, http.MethodPost, "/api/backup/schedule", `{"cron":"not a cron"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/backup/schedule", `{"cron":"0 2 * * *","template":{"name":"nightly"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sched := decode[model.Schedule](t, rec)
	assert.True(t, sched.Enabled)

	rec = f.do(t, http.MethodGet, "/api/backup/schedule", "")
	assert.Equal(t, "0 2 * * *", decode[model.Schedule](t, rec).Cron)
}

func TestRemediatorEndpoints(t *testing.T) {
	f := newFixture(t, config.Server{}, stubSource{clock: clockwork.NewFakeClockAt(t0)})
	hotID := model.IssueID(model.IssueHighCPU, "worker-1")

	rec := f.do(t, http.MethodGet, "/api/remediator/issues?type="+model.IssueHighCPU, "")
	require.Equal(t, http.StatusOK, rec.Code)
	issues := decode[[]model.Issue](t, rec)
	require.NotEmpty(t, issues)
	ids := map[string]bool{}
	for _, is := range issues {
		assert.Equal(t, model.IssueHighCPU, is.Type)
		ids[is.ID] = true
	}
	assert.True(t, ids[hotID])

	rec = f.do(t, http.MethodGet, "/api/remediator/issues/"+hotID+"/suggestions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sugg := decode[suggestionsResponse](t, rec)
	assert.Equal(t, "worker-1", sugg.Component)
	assert.NotEmpty(t, sugg.Suggestions)

	rec = f.do(t, http.MethodGet, "/api/remediator/issues/unknown/suggestions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Auto mode is off, so the refusal lists the manual steps.
	rec = f.do(t, http.MethodPost, "/api/remediator/issues/"+hotID+"/remediate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]any](t, rec)
	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["details"], "manual_actions")

	rec = f.do(t, http.MethodGet, "/api/remediator/settings/auto", "")
	assert.JSONEq(t, `{"auto_remediate":false}`, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/api/remediator/settings/auto", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/remediator/settings/auto", `{"auto_remediate":true}`)
	assert.JSONEq(t, `{"auto_remediate":true}`, rec.Body.String())
	assert.True(t, f.a.Remediator.Auto())

	rec = f.do(t, http.MethodGet, "/api/remediator/history?hours=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/remediator/history", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/remediator/remediation/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, config.Server{RateLimit: 1}, stubSource{})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, f.do(t, http.MethodGet, "/healthz", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, config.Server{MaxConns: 4}, stubSource{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
