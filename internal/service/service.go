// Package service runs the agent's periodic loops and keeps the latest
// metrics and predictions for the API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kagent/internal/backup"
	"kagent/internal/collect"
	"kagent/internal/cost"
	"kagent/internal/history"
	"kagent/internal/model"
	"kagent/internal/predict"
	"kagent/internal/remediation"
	"kagent/internal/security"
	"kagent/internal/store"
)

// PredictionHistorySize caps the stored prediction records.
const PredictionHistorySize = 1000

const (
	DefaultMetricsInterval    = 60 * time.Second
	DefaultPredictionInterval = 300 * time.Second
	DefaultSecurityInterval   = 3600 * time.Second
	DefaultCostInterval       = 86400 * time.Second
	DefaultCostSampleInterval = time.Hour
)

// Agents are the components the service drives. Only Source and
// Predictor are required.
type Agents struct {
	Source     collect.Source
	Predictor  *predict.Predictor
	Remediator *remediation.Remediator
	Scanner    *security.Scanner
	Optimizer  *cost.Optimizer
	Backups    *backup.Manager
}

type Intervals struct {
	Metrics    time.Duration
	Prediction time.Duration
	Security   time.Duration
	Cost       time.Duration
	CostSample time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.Metrics <= 0 {
		iv.Metrics = DefaultMetricsInterval
	}
	if iv.Prediction <= 0 {
		iv.Prediction = DefaultPredictionInterval
	}
	if iv.Security <= 0 {
		iv.Security = DefaultSecurityInterval
	}
	if iv.Cost <= 0 {
		iv.Cost = DefaultCostInterval
	}
	if iv.CostSample <= 0 {
		iv.CostSample = DefaultCostSampleInterval
	}
	return iv
}

// BackupSchedule is installed on the backup manager when Run starts.
type BackupSchedule struct {
	Cron     string
	Template model.BackupJob
}

type Options struct {
	Intervals Intervals
	Backup    BackupSchedule
	UseMock   bool
	Store     *store.Store
}

type Service struct {
	agents Agents
	iv     Intervals
	sched  BackupSchedule
	mock   bool
	store  *store.Store
	clock  clockwork.Clock
	logger *zap.Logger

	running atomic.Bool
	records *history.Ring[model.PredictionRecord]

	mu             sync.RWMutex
	current        *model.ClusterMetrics
	latest         *model.Prediction
	lastCollection time.Time
}

func New(agents Agents, opts Options, clock clockwork.Clock, logger *zap.Logger) (*Service, error) {
	if agents.Source == nil || agents.Predictor == nil {
		return nil, errors.New("service needs a metrics source and a predictor")
	}
	s := &Service{
		agents:  agents,
		iv:      opts.Intervals.withDefaults(),
		sched:   opts.Backup,
		mock:    opts.UseMock,
		store:   opts.Store,
		clock:   clock,
		logger:  logger.Named("service"),
		records: history.NewRing[model.PredictionRecord](PredictionHistorySize),
	}
	if s.store != nil {
		saved, err := store.Load[model.PredictionRecord](s.store, store.BucketPredictions)
		if err != nil {
			return nil, fmt.Errorf("load prediction history: %w", err)
		}
		for _, r := range saved {
			s.records.Push(r)
		}
	}
	return s, nil
}

// Run blocks until ctx is cancelled or a loop fails to start.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("service already running")
	}
	defer s.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.every(ctx, "metrics collection", s.iv.Metrics, s.CollectNow) })
	g.Go(func() error {
		return s.every(ctx, "prediction", s.iv.Prediction, func(ctx context.Context) error {
			_, err := s.PredictNow(ctx)
			return err
		})
	})
	if sc := s.agents.Scanner; sc != nil {
		g.Go(func() error {
			return s.every(ctx, "security scan", s.iv.Security, func(ctx context.Context) error {
				_, err := sc.Scan(ctx)
				return err
			})
		})
	}
	if o := s.agents.Optimizer; o != nil {
		g.Go(func() error { return s.every(ctx, "cost sampling", s.iv.CostSample, o.CollectMetrics) })
		g.Go(func() error {
			return s.every(ctx, "cost analysis", s.iv.Cost, func(ctx context.Context) error {
				_, err := o.Analyze(ctx)
				return err
			})
		})
	}
	if b := s.agents.Backups; b != nil && s.sched.Cron != "" {
		g.Go(func() error {
			if _, err := b.SetSchedule(s.sched.Cron, s.sched.Template); err != nil {
				return fmt.Errorf("install backup schedule: %w", err)
			}
			<-ctx.Done()
			if _, err := b.SetSchedule("", model.BackupJob{}); err != nil {
				s.logger.Warn("clear backup schedule", zap.Error(err))
			}
			return nil
		})
	}

	s.logger.Info("service started",
		zap.Duration("metrics_interval", s.iv.Metrics),
		zap.Duration("prediction_interval", s.iv.Prediction),
		zap.Bool("mock", s.mock),
	)
	err := g.Wait()
	s.logger.Info("service stopped")
	return err
}

// every runs fn immediately and then on each tick. Failures are logged and
// the loop keeps going.
func (s *Service) every(ctx context.Context, name string, d time.Duration, fn func(context.Context) error) error {
	t := s.clock.NewTicker(d)
	defer t.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn(name+" failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.Chan():
		}
	}
}

// Running reports whether Run is active.
func (s *Service) Running() bool {
	return s.running.Load()
}

// CollectNow takes a metrics snapshot and makes it current.
func (s *Service) CollectNow(ctx context.Context) error {
	m, err := s.agents.Source.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	s.mu.Lock()
	s.current = m
	s.lastCollection = s.clock.Now()
	s.mu.Unlock()
	return nil
}

// CurrentMetrics returns the newest snapshot, or nil before the first collection.
func (s *Service) CurrentMetrics() *model.ClusterMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) LatestPrediction() *model.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// PredictNow analyzes the current snapshot, collecting one first when none
// exists, and hands every issue to the remediator.
func (s *Service) PredictNow(ctx context.Context) (model.Prediction, error) {
	m := s.CurrentMetrics()
	if m == nil {
		if err := s.CollectNow(ctx); err != nil {
			return model.Prediction{}, err
		}
		m = s.CurrentMetrics()
	}

	pred := s.agents.Predictor.Analyze(m)
	s.mu.Lock()
	s.latest = &pred
	s.mu.Unlock()
	s.record(pred)

	if r := s.agents.Remediator; r != nil && len(pred.Issues) > 0 && (r.Auto() || s.mock) {
		for _, is := range pred.Issues {
			if ctx.Err() != nil {
				break
			}
			r.Remediate(ctx, is)
		}
	}
	return pred, nil
}

func (s *Service) record(pred model.Prediction) {
	rec := model.PredictionRecord{
		Timestamp:  pred.Timestamp,
		IssueTypes: make([]string, 0, len(pred.Issues)),
		Confidence: pred.Confidence,
	}
	for _, is := range pred.Issues {
		rec.IssueTypes = append(rec.IssueTypes, is.Type)
	}
	s.records.Push(rec)
	if s.store == nil {
		return
	}
	if err := s.store.Put(store.BucketPredictions, store.TimeKey(rec.Timestamp, "prediction"), rec); err != nil {
		s.logger.Error("save prediction", zap.Error(err))
		return
	}
	if _, err := s.store.Prune(store.BucketPredictions, PredictionHistorySize); err != nil {
		s.logger.Warn("prune prediction history", zap.Error(err))
	}
}

// MetricsHistory returns the cluster-wide cpu and memory series inside timespan.
func (s *Service) MetricsHistory(timespan time.Duration) model.MetricsHistory {
	since := s.clock.Now().Add(-timespan)
	out := model.MetricsHistory{CPUUsage: []model.SeriesPoint{}, MemoryUsage: []model.SeriesPoint{}}
	for _, m := range s.agents.Predictor.History() {
		if m.Timestamp.Before(since) {
			continue
		}
		n, ok := m.Nodes[model.ClusterNode]
		if !ok {
			continue
		}
		out.CPUUsage = append(out.CPUUsage, model.SeriesPoint{Timestamp: m.Timestamp, Value: n.CPUUsage})
		out.MemoryUsage = append(out.MemoryUsage, model.SeriesPoint{Timestamp: m.Timestamp, Value: n.MemoryUsage})
	}
	return out
}

// Trends counts issues and remediation actions over the last hours.
func (s *Service) Trends(hours int) model.Trends {
	if hours <= 0 {
		hours = remediation.DefaultHistoryHours
	}
	since := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	t := model.Trends{Hours: hours, IssueTrends: map[string]int{}, RemediationTrends: map[string]int{}}

	recs := s.records.Within(since, func(r model.PredictionRecord) time.Time { return r.Timestamp })
	t.TotalPredictions = len(recs)
	for _, r := range recs {
		for _, typ := range r.IssueTypes {
			t.IssueTrends[typ]++
		}
	}
	if r := s.agents.Remediator; r != nil {
		for _, res := range r.History(hours, remediation.HistorySize) {
			t.RemediationTrends[res.Action]++
		}
	}
	return t
}

// Predictions returns stored prediction records, newest first.
func (s *Service) Predictions(limit int) []model.PredictionRecord {
	all := s.records.All()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *Service) Status() model.AgentStatus {
	st := model.AgentStatus{Running: s.Running(), UseMock: s.mock}
	if r := s.agents.Remediator; r != nil {
		st.AutoRemediate = r.Auto()
		if last, ok := r.Last(); ok {
			ts := last.Timestamp
			st.LastRemediation = &ts
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest != nil {
		ts := s.latest.Timestamp
		st.LastPrediction = &ts
	}
	if !s.lastCollection.IsZero() {
		ts := s.lastCollection
		st.LastCollection = &ts
	}
	return st
}
