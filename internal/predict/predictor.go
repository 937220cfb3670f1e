package predict

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"kagent/internal/history"
	"kagent/internal/metrics"
	"kagent/internal/model"
	"kagent/internal/store"
)

// HistorySize bounds the snapshots kept for trend and correlation analysis.
const HistorySize = 1000

// Predictor turns metric snapshots into issues, suggestions and summaries.
type Predictor struct {
	th      model.Thresholds
	clock   clockwork.Clock
	logger  *zap.Logger
	history *history.Ring[*model.ClusterMetrics]
	store   *store.Store

	mu    sync.RWMutex
	model *AnomalyModel
}

func NewPredictor(th model.Thresholds, clock clockwork.Clock, logger *zap.Logger) *Predictor {
	return &Predictor{
		th:      th,
		clock:   clock,
		logger:  logger.Named("predictor"),
		history: history.NewRing[*model.ClusterMetrics](HistorySize),
	}
}

func (p *Predictor) Thresholds() model.Thresholds { return p.th }

// SetModel installs a trained anomaly model. nil disables the ML check.
func (p *Predictor) SetModel(m *AnomalyModel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = m
}

func (p *Predictor) Model() *AnomalyModel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// UseStore reloads persisted snapshots into the history and persists every
// snapshot recorded from now on, keeping the newest HistorySize.
func (p *Predictor) UseStore(st *store.Store) error {
	saved, err := store.Load[*model.ClusterMetrics](st, store.BucketMetrics)
	if err != nil {
		return fmt.Errorf("load metrics history: %w", err)
	}
	if len(saved) > HistorySize {
		saved = saved[len(saved)-HistorySize:]
	}
	for _, m := range saved {
		p.history.Push(m)
	}
	p.store = st
	p.logger.Info("metrics history loaded", zap.Int("snapshots", len(saved)))
	return nil
}

func (p *Predictor) persist(m *model.ClusterMetrics) {
	if p.store == nil {
		return
	}
	if err := p.store.Put(store.BucketMetrics, store.TimeKey(m.Timestamp, "metrics"), m); err != nil {
		p.logger.Warn("save metrics snapshot", zap.Error(err))
		return
	}
	if _, err := p.store.Prune(store.BucketMetrics, HistorySize); err != nil {
		p.logger.Warn("prune metrics history", zap.Error(err))
	}
}

// History returns the recorded snapshots, oldest first.
func (p *Predictor) History() []*model.ClusterMetrics {
	return p.history.All()
}

// Analyze records m and evaluates every check against it.
func (p *Predictor) Analyze(m *model.ClusterMetrics) model.Prediction {
	now := p.clock.Now()
	if m == nil {
		m = model.NewClusterMetrics(now)
	}
	p.history.Push(m)
	p.persist(m)
	recent := p.recent(now)

	var issues []model.Issue
	issues = append(issues, thresholdIssues(m, p.th)...)
	issues = append(issues, trendIssues(m, recent, p.th)...)
	issues = append(issues, correlationIssues(m, recent, p.th)...)

	am := p.Model()
	if am != nil {
		issues = append(issues, anomalyIssues(m, am)...)
	}

	pred := model.Prediction{
		Timestamp:    now,
		Issues:       make([]model.Issue, 0, len(issues)),
		Suggestions:  []model.Suggestion{},
		Trends:       trendSummary(m, recent),
		Correlations: correlationSummary(m, recent),
		MLModelUsed:  am != nil,
	}
	for _, is := range issues {
		is.ID = model.IssueID(is.Type, is.Component)
		is.Timestamp = now
		pred.Issues = append(pred.Issues, is)
		if s, ok := Suggest(is, p.th); ok {
			pred.Suggestions = append(pred.Suggestions, s)
		}
		metrics.IssuesDetectedTotal.WithLabelValues(is.Type).Inc()
	}
	pred.Confidence = Confidence(pred.Issues)
	metrics.PredictionsTotal.Inc()

	p.logger.Debug("prediction",
		zap.Int("issues", len(pred.Issues)),
		zap.Float64("confidence", pred.Confidence),
		zap.Bool("ml", pred.MLModelUsed),
	)
	return pred
}

// recent returns the snapshots inside the trend window, or nil when the
// history is too short to say anything.
func (p *Predictor) recent(now time.Time) []*model.ClusterMetrics {
	if p.history.Len() < 2 {
		return nil
	}
	win := p.history.Within(now.Add(-p.th.TrendWindow), func(c *model.ClusterMetrics) time.Time {
		return c.Timestamp
	})
	if len(win) < 2 {
		return nil
	}
	return win
}

func sortedNodes(m *model.ClusterMetrics) []string {
	names := make([]string, 0, len(m.Nodes))
	for n := range m.Nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedPods(m *model.ClusterMetrics) []string {
	names := make([]string, 0, len(m.Pods))
	for n := range m.Pods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
