// Package remediation turns predicted issues into cluster changes, or into
// manual steps when automatic remediation is off.
package remediation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/history"
	"kagent/internal/metrics"
	"kagent/internal/model"
	"kagent/internal/store"
)

// HistorySize caps the stored results.
const HistorySize = 1000

const (
	DefaultHistoryHours = 24
	DefaultHistoryLimit = 100
)

// ErrAutoDisabled is the message of results refused because auto mode is off.
const ErrAutoDisabled = "Auto-remediation is disabled"

type Options struct {
	Auto  bool
	Mock  bool
	Store *store.Store
}

type Remediator struct {
	client kubernetes.Interface
	mock   bool
	store  *store.Store
	clock  clockwork.Clock
	logger *zap.Logger

	mu      sync.RWMutex
	auto    bool
	history *history.Ring[model.RemediationResult]
}

func NewRemediator(client kubernetes.Interface, opts Options, clock clockwork.Clock, logger *zap.Logger) (*Remediator, error) {
	r := &Remediator{
		client:  client,
		mock:    opts.Mock,
		store:   opts.Store,
		clock:   clock,
		logger:  logger.Named("remediation"),
		auto:    opts.Auto,
		history: history.NewRing[model.RemediationResult](HistorySize),
	}
	if r.store != nil {
		saved, err := store.Load[model.RemediationResult](r.store, store.BucketRemediations)
		if err != nil {
			return nil, fmt.Errorf("load remediation history: %w", err)
		}
		for _, res := range saved {
			r.history.Push(res)
		}
	}
	return r, nil
}

func (r *Remediator) SetAuto(on bool) {
	r.mu.Lock()
	r.auto = on
	r.mu.Unlock()
	r.logger.Info("auto-remediation changed", zap.Bool("enabled", on))
}

func (r *Remediator) Auto() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.auto
}

// Remediate runs the strategy for the issue type and records the result.
// Nothing is recorded when auto mode is off.
func (r *Remediator) Remediate(ctx context.Context, issue model.Issue) model.RemediationResult {
	if !r.Auto() && !r.mock {
		return model.RemediationResult{
			IssueID:      issue.ID,
			IssueType:    issue.Type,
			Component:    issue.Component,
			Details:      map[string]any{},
			ErrorMessage: ErrAutoDisabled,
		}
	}

	res := model.RemediationResult{
		ActionID:  uuid.NewString(),
		IssueID:   issue.ID,
		IssueType: issue.Type,
		Component: issue.Component,
		Timestamp: r.clock.Now(),
		Details:   map[string]any{},
	}
	log := r.logger.With(
		zap.String("action_id", res.ActionID),
		zap.String("issue_type", issue.Type),
		zap.String("component", issue.Component),
	)

	switch {
	case r.mock:
		res.Action = "mock"
		res.Success = true
		res.Details["mock"] = true
	case issue.Type == "" || issue.Component == "":
		res.ErrorMessage = "Missing required issue details (type or component)"
	default:
		s, ok := strategies[issue.Type]
		if !ok {
			res.ErrorMessage = "No remediation strategy available for issue type: " + issue.Type
			break
		}
		action, details, err := s(ctx, r, issue)
		res.Action = action
		if details != nil {
			res.Details = details
		}
		if err != nil {
			res.ErrorMessage = err.Error()
			log.Warn("remediation failed", zap.String("action", action), zap.Error(err))
		} else {
			res.Success = true
			log.Info("remediation applied", zap.String("action", action))
		}
	}

	metrics.RemediationsTotal.WithLabelValues(res.Action, strconv.FormatBool(res.Success)).Inc()
	r.record(res, log)
	return res
}

func (r *Remediator) record(res model.RemediationResult, log *zap.Logger) {
	r.history.Push(res)
	if r.store == nil {
		return
	}
	if err := r.store.Put(store.BucketRemediations, store.TimeKey(res.Timestamp, res.ActionID), res); err != nil {
		log.Error("save remediation", zap.Error(err))
		return
	}
	if _, err := r.store.Prune(store.BucketRemediations, HistorySize); err != nil {
		log.Warn("prune remediation history", zap.Error(err))
	}
}

// History returns results from the last hours, newest first, at most limit.
// Non-positive arguments fall back to 24 hours and 100 results.
func (r *Remediator) History(hours, limit int) []model.RemediationResult {
	if hours <= 0 {
		hours = DefaultHistoryHours
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	since := r.clock.Now().Add(-time.Duration(hours) * time.Hour)
	out := r.history.Within(since, func(res model.RemediationResult) time.Time { return res.Timestamp })
	if out == nil {
		out = []model.RemediationResult{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Last returns the newest result.
func (r *Remediator) Last() (model.RemediationResult, bool) {
	return r.history.Last()
}

func (r *Remediator) Get(actionID string) (model.RemediationResult, bool) {
	for _, res := range r.history.All() {
		if res.ActionID == actionID {
			return res, true
		}
	}
	return model.RemediationResult{}, false
}

func (r *Remediator) isNode(ctx context.Context, name string) bool {
	_, err := r.client.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	return err == nil
}
