package cost

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/history"
	"kagent/internal/kube"
	"kagent/internal/metrics"
	"kagent/internal/model"
	"kagent/internal/store"
	"kagent/internal/trend"
)

// RunHistorySize bounds the stored analysis runs.
const RunHistorySize = 100

// InventoryFunc supplies the current cluster objects.
type InventoryFunc func(ctx context.Context) (*model.Inventory, error)

type Options struct {
	Provider   string
	WindowDays int
	// Client is used by Apply. Without it suggestions can only be simulated.
	Client kubernetes.Interface
	Store  *store.Store
}

type podSample struct {
	At            time.Time
	CPUUsage      float64
	MemoryUsage   float64
	CPURequest    float64
	MemoryRequest float64
	CPULimit      float64
	MemoryLimit   float64
}

type nodeSample struct {
	At           time.Time
	CPUUsage     float64
	MemoryUsage  float64
	CPUUtil      float64
	MemoryUtil   float64
	InstanceType string
}

// Optimizer tracks usage over a sliding window and derives cost suggestions.
type Optimizer struct {
	inventory InventoryFunc
	usage     kube.MetricsReader
	client    kubernetes.Interface
	provider  string
	window    time.Duration
	store     *store.Store
	clock     clockwork.Clock
	logger    *zap.Logger
	runs      *history.Ring[model.CostRun]

	mu    sync.RWMutex
	pods  map[string][]podSample
	nodes map[string][]nodeSample
	inv   *model.Inventory
}

func NewOptimizer(inventory InventoryFunc, usage kube.MetricsReader, opts Options, clock clockwork.Clock, logger *zap.Logger) (*Optimizer, error) {
	if opts.Provider == "" {
		opts.Provider = "aws"
	}
	if _, ok := Pricing[opts.Provider]; !ok {
		return nil, fmt.Errorf("unknown cloud provider %q", opts.Provider)
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 7
	}
	o := &Optimizer{
		inventory: inventory,
		usage:     usage,
		client:    opts.Client,
		provider:  opts.Provider,
		window:    time.Duration(opts.WindowDays) * 24 * time.Hour,
		store:     opts.Store,
		clock:     clock,
		logger:    logger.Named("cost"),
		runs:      history.NewRing[model.CostRun](RunHistorySize),
		pods:      map[string][]podSample{},
		nodes:     map[string][]nodeSample{},
	}
	if o.store != nil {
		saved, err := store.Load[model.CostRun](o.store, store.BucketCostRuns)
		if err != nil {
			return nil, fmt.Errorf("load cost history: %w", err)
		}
		for _, r := range saved {
			o.runs.Push(r)
		}
	}
	return o, nil
}

func (o *Optimizer) Provider() string { return o.provider }

// CollectMetrics records one usage sample per pod and node and drops samples
// older than the window. Objects without usage data are not sampled.
func (o *Optimizer) CollectMetrics(ctx context.Context) error {
	inv, err := o.inventory(ctx)
	if err != nil {
		return fmt.Errorf("collect inventory: %w", err)
	}
	now := o.clock.Now()

	var podUsage map[string]kube.Usage
	var nodeUsage map[string]kube.Usage
	if o.usage != nil {
		if pu, err := o.usage.PodMetrics(ctx); err == nil {
			podUsage = make(map[string]kube.Usage, len(pu))
			for _, p := range pu {
				podUsage[p.Namespace+"/"+p.Name] = p.Usage
			}
		} else {
			o.logger.Warn("pod usage unavailable", zap.Error(err))
		}
		if nu, err := o.usage.NodeMetrics(ctx); err == nil {
			nodeUsage = nu
		} else {
			o.logger.Warn("node usage unavailable", zap.Error(err))
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inv = inv

	for _, p := range inv.Pods {
		u, ok := podUsage[p.Key()]
		if !ok {
			continue
		}
		cpuReq, memReq := p.Requests()
		cpuLim, memLim := p.Limits()
		o.pods[p.Key()] = append(o.pods[p.Key()], podSample{
			At: now, CPUUsage: u.CPU, MemoryUsage: u.Memory,
			CPURequest: cpuReq, MemoryRequest: memReq, CPULimit: cpuLim, MemoryLimit: memLim,
		})
	}
	for _, n := range inv.Nodes {
		u, ok := nodeUsage[n.Name]
		if !ok {
			continue
		}
		o.nodes[n.Name] = append(o.nodes[n.Name], nodeSample{
			At:           now,
			CPUUsage:     u.CPU,
			MemoryUsage:  u.Memory,
			CPUUtil:      pct(u.CPU, n.CPUCapacity),
			MemoryUtil:   pct(u.Memory, n.MemoryCapacity),
			InstanceType: n.InstanceType,
		})
	}

	cutoff := now.Add(-o.window)
	prune(o.pods, func(s podSample) bool { return !s.At.Before(cutoff) })
	prune(o.nodes, func(s nodeSample) bool { return !s.At.Before(cutoff) })
	return nil
}

func prune[T any](m map[string][]T, keep func(T) bool) {
	for k, samples := range m {
		out := samples[:0]
		for _, s := range samples {
			if keep(s) {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			delete(m, k)
			continue
		}
		m[k] = out
	}
}

func pct(used, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return used / total * 100
}

// Analyze derives suggestions from the collected window, collecting first
// when nothing has been sampled yet, and records the run.
func (o *Optimizer) Analyze(ctx context.Context) ([]model.CostSuggestion, error) {
	o.mu.RLock()
	empty := o.inv == nil
	o.mu.RUnlock()
	if empty {
		if err := o.CollectMetrics(ctx); err != nil {
			return nil, err
		}
	}

	now := o.clock.Now()
	o.mu.RLock()
	var all []model.CostSuggestion
	all = append(all, o.analyzePods()...)
	all = append(all, o.analyzeNodeGroups()...)
	all = append(all, analyzeQuotas(o.inv)...)
	o.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].EstimatedSavings.TotalMonthly > all[j].EstimatedSavings.TotalMonthly
	})

	seen := map[string]bool{}
	out := make([]model.CostSuggestion, 0, len(all))
	for _, s := range all {
		s.ID = model.SuggestionID(s.ResourceType, s.Namespace, s.Name)
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		s.Timestamp = now
		out = append(out, s)
	}

	run := model.CostRun{
		Timestamp:       now,
		Suggestions:     out,
		TotalSavings:    totalOf(out),
		SuggestionCount: len(out),
	}
	if prev, ok := o.runs.Last(); ok {
		c := trend.Compute(prev.TotalSavings.Monthly, run.TotalSavings.Monthly)
		run.SavingsChange = &c
	}
	o.runs.Push(run)
	if o.store != nil {
		if err := o.store.Put(store.BucketCostRuns, store.TimeKey(now, "run"), run); err != nil {
			return nil, fmt.Errorf("save cost run: %w", err)
		}
		if _, err := o.store.Prune(store.BucketCostRuns, RunHistorySize); err != nil {
			o.logger.Warn("prune cost history", zap.Error(err))
		}
	}
	metrics.CostPotentialSavings.Set(run.TotalSavings.Monthly)

	o.logger.Info("cost analysis complete",
		zap.Int("suggestions", len(out)),
		zap.Float64("monthly_savings", run.TotalSavings.Monthly),
	)
	return out, nil
}

func totalOf(s []model.CostSuggestion) model.TotalSavings {
	var monthly float64
	for _, x := range s {
		monthly += x.EstimatedSavings.TotalMonthly
	}
	return model.TotalSavings{Monthly: trend.Round(monthly, 2), Annual: trend.Round(monthly*12, 2)}
}

// TotalSavings sums the latest run.
func (o *Optimizer) TotalSavings() model.TotalSavings {
	last, ok := o.runs.Last()
	if !ok {
		return model.TotalSavings{}
	}
	return last.TotalSavings
}

// Suggestions returns up to limit suggestions of the latest run, optionally
// restricted to one priority. limit <= 0 returns all.
func (o *Optimizer) Suggestions(limit int, priority string) []model.CostSuggestion {
	out := []model.CostSuggestion{}
	last, ok := o.runs.Last()
	if !ok {
		return out
	}
	for _, s := range last.Suggestions {
		if priority != "" && string(s.Priority) != priority {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s)
	}
	return out
}

func (o *Optimizer) find(id string) (model.CostSuggestion, bool) {
	last, ok := o.runs.Last()
	if !ok {
		return model.CostSuggestion{}, false
	}
	for _, s := range last.Suggestions {
		if s.ID == id {
			return s, true
		}
	}
	return model.CostSuggestion{}, false
}

// History returns up to limit runs, newest first.
func (o *Optimizer) History(limit int) []model.CostRun {
	all := o.runs.All()
	out := make([]model.CostRun, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out
}

// Analysis summarizes cluster cost against the latest run's savings.
func (o *Optimizer) Analysis() model.CostAnalysis {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := model.CostAnalysis{Provider: o.provider, Timestamp: o.clock.Now()}
	if o.inv == nil {
		return out
	}

	var compute float64
	for _, n := range o.inv.Nodes {
		compute += nodeMonthlyCost(o.provider, n)
	}
	var storageGB float64
	for _, pvc := range o.inv.PVCs {
		storageGB += pvc.RequestedBytes / gib
	}
	out.Breakdown = model.CostBreakdown{
		Compute: trend.Round(compute, 2),
		Storage: trend.Round(storageGB*Pricing[o.provider].StorageGBMonth, 2),
	}
	out.MonthlyCost = trend.Round(out.Breakdown.Compute+out.Breakdown.Storage+out.Breakdown.Network, 2)
	out.PotentialSavings = o.TotalSavings().Monthly
	out.SavingsPercentage = SavingsPercent(out.MonthlyCost, out.MonthlyCost-out.PotentialSavings)

	var eff float64
	var count int
	for _, samples := range o.nodes {
		last := samples[len(samples)-1]
		eff += (last.CPUUtil + last.MemoryUtil) / 2
		count++
	}
	if count > 0 {
		out.Efficiency = trend.Round(eff/float64(count), 1)
	}
	return out
}

// Utilization compares requests with the latest measured usage per node and namespace.
func (o *Optimizer) Utilization() model.Utilization {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := model.Utilization{
		Nodes:      map[string]model.ResourceUsage{},
		Namespaces: map[string]model.ResourceUsage{},
		Timestamp:  o.clock.Now(),
	}
	if o.inv == nil {
		return out
	}
	for _, n := range o.inv.Nodes {
		u := model.ResourceUsage{}
		if samples := o.nodes[n.Name]; len(samples) > 0 {
			last := samples[len(samples)-1]
			u.CPUUsed, u.MemoryUsed = last.CPUUsage, last.MemoryUsage
		}
		out.Nodes[n.Name] = u
	}
	for _, p := range o.inv.Pods {
		if p.Phase != "Running" {
			continue
		}
		cpuReq, memReq := p.Requests()
		var cpuUsed, memUsed float64
		if samples := o.pods[p.Key()]; len(samples) > 0 {
			last := samples[len(samples)-1]
			cpuUsed, memUsed = last.CPUUsage, last.MemoryUsage
		}
		if nu, ok := out.Nodes[p.Node]; ok {
			nu.CPURequested += cpuReq
			nu.MemoryRequested += memReq
			out.Nodes[p.Node] = nu
		}
		ns := out.Namespaces[p.Namespace]
		ns.CPURequested += cpuReq
		ns.MemoryRequested += memReq
		ns.CPUUsed += cpuUsed
		ns.MemoryUsed += memUsed
		out.Namespaces[p.Namespace] = ns
	}
	for k, u := range out.Nodes {
		out.Nodes[k] = finishUsage(u)
	}
	for k, u := range out.Namespaces {
		out.Namespaces[k] = finishUsage(u)
	}
	return out
}

func finishUsage(u model.ResourceUsage) model.ResourceUsage {
	u.CPUUtilization = trend.Round(pct(u.CPUUsed, u.CPURequested), 1)
	u.MemoryUtil = trend.Round(pct(u.MemoryUsed, u.MemoryRequested), 1)
	return u
}

// CloudDetails reports the pricing in use and the node sizes present.
func (o *Optimizer) CloudDetails() model.CloudDetails {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := model.CloudDetails{
		Provider:      o.provider,
		Pricing:       Pricing[o.provider],
		InstanceTypes: map[string]model.InstanceType{},
		NodesByType:   map[string]int{},
	}
	if o.inv == nil {
		return out
	}
	for _, n := range o.inv.Nodes {
		out.NodesByType[n.InstanceType]++
		if it, ok := instanceType(o.provider, n.InstanceType); ok {
			out.InstanceTypes[n.InstanceType] = it
		}
	}
	return out
}
