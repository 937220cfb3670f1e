package security

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"kagent/internal/history"
	"kagent/internal/metrics"
	"kagent/internal/model"
	"kagent/internal/risk"
	"kagent/internal/store"
)

// HistorySize is the number of scans kept in memory and in the store.
const HistorySize = 100

// InventoryFunc supplies the objects a scan evaluates.
type InventoryFunc func(ctx context.Context) (*model.Inventory, error)

type Scanner struct {
	inventory InventoryFunc
	exclude   []string
	store     *store.Store
	clock     clockwork.Clock
	logger    *zap.Logger
	history   *history.Ring[*model.ScanResult]
}

// NewScanner restores the scan history from st when it is non-nil.
func NewScanner(inventory InventoryFunc, exclude []string, st *store.Store, clock clockwork.Clock, logger *zap.Logger) (*Scanner, error) {
	s := &Scanner{
		inventory: inventory,
		exclude:   exclude,
		store:     st,
		clock:     clock,
		logger:    logger.Named("security"),
		history:   history.NewRing[*model.ScanResult](HistorySize),
	}
	if st != nil {
		saved, err := store.Load[model.ScanResult](st, store.BucketScans)
		if err != nil {
			return nil, fmt.Errorf("load scan history: %w", err)
		}
		for i := range saved {
			s.history.Push(&saved[i])
		}
	}
	return s, nil
}

// Scan evaluates a fresh inventory and records the result.
func (s *Scanner) Scan(ctx context.Context) (*model.ScanResult, error) {
	inv, err := s.inventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect inventory: %w", err)
	}

	res := Evaluate(inv, s.exclude)
	res.ID = uuid.NewString()
	res.Timestamp = s.clock.Now()
	res.Posture = string(risk.FromScore(float64(res.Score)))

	prev := -1
	if last, ok := s.history.Last(); ok {
		prev = last.TotalIssues
	}
	res.Trend = history.Label(prev, res.TotalIssues)

	s.history.Push(res)
	if s.store != nil {
		if err := s.store.Put(store.BucketScans, store.TimeKey(res.Timestamp, res.ID), res); err != nil {
			return nil, fmt.Errorf("save scan: %w", err)
		}
		if _, err := s.store.Prune(store.BucketScans, HistorySize); err != nil {
			s.logger.Warn("prune scan history", zap.Error(err))
		}
	}

	metrics.SecurityScansTotal.Inc()
	metrics.SecurityIssues.WithLabelValues(string(model.SeverityCritical)).Set(float64(res.Details.Critical))
	metrics.SecurityIssues.WithLabelValues(string(model.SeverityHigh)).Set(float64(res.Details.High))
	metrics.SecurityIssues.WithLabelValues(string(model.SeverityMedium)).Set(float64(res.Details.Medium))
	metrics.SecurityIssues.WithLabelValues(string(model.SeverityLow)).Set(float64(res.Details.Low))

	for _, sk := range inv.CollectorSkips {
		s.logger.Warn("scan ran without collector", zap.String("collector", sk.Name), zap.Bool("rbac", sk.RBAC))
	}
	s.logger.Info("security scan complete",
		zap.String("id", res.ID),
		zap.Int("issues", res.TotalIssues),
		zap.Int("score", res.Score),
		zap.String("trend", res.Trend),
	)
	return res, nil
}

// Latest returns the newest scan, or nil when none has run.
func (s *Scanner) Latest() *model.ScanResult {
	last, ok := s.history.Last()
	if !ok {
		return nil
	}
	return last
}

// History returns up to limit scans, newest first. limit <= 0 returns all.
func (s *Scanner) History(limit int) []*model.ScanResult {
	all := s.history.All()
	out := make([]*model.ScanResult, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out
}
