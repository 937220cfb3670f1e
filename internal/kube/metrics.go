package kube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/metrics"
)

var ErrMetricsUnavailable = errors.New("metrics.k8s.io unavailable")

const (
	nodeMetricsPath = "/apis/metrics.k8s.io/v1beta1/nodes"
	podMetricsPath  = "/apis/metrics.k8s.io/v1beta1/pods"
)

// Usage is CPU in cores and memory in bytes.
type Usage struct {
	CPU    float64
	Memory float64
}

type PodUsage struct {
	Namespace string
	Name      string
	Usage
}

// MetricsReader is what the collector needs from the metrics API.
type MetricsReader interface {
	NodeMetrics(ctx context.Context) (map[string]Usage, error)
	PodMetrics(ctx context.Context) ([]PodUsage, error)
}

// FetchFunc returns the raw body for an absolute API path.
type FetchFunc func(ctx context.Context, path string) ([]byte, error)

// MetricsClient reads metrics.k8s.io through a circuit breaker. After five
// consecutive failures it fails fast for thirty seconds.
type MetricsClient struct {
	fetch  FetchFunc
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewMetricsClient(cs kubernetes.Interface, logger *zap.Logger) *MetricsClient {
	fetch := func(ctx context.Context, path string) ([]byte, error) {
		return cs.Discovery().RESTClient().Get().AbsPath(path).DoRaw(ctx)
	}
	return NewMetricsClientWithFetch(fetch, logger)
}

func NewMetricsClientWithFetch(fetch FetchFunc, logger *zap.Logger) *MetricsClient {
	m := &MetricsClient{fetch: fetch, logger: logger}
	m.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metrics-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.MetricsBreakerState.Set(stateToFloat(to))
		},
	})
	return m
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (m *MetricsClient) State() gobreaker.State {
	return m.cb.State()
}

func (m *MetricsClient) get(ctx context.Context, path string) ([]byte, error) {
	out, err := m.cb.Execute(func() (interface{}, error) {
		return m.fetch(ctx, path)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	return out.([]byte), nil
}

type usageList struct {
	Items []struct {
		Metadata struct {
			Name      string `json:"name"`
			Namespace string `json:"namespace"`
		} `json:"metadata"`
		Usage      map[string]string `json:"usage"`
		Containers []struct {
			Usage map[string]string `json:"usage"`
		} `json:"containers"`
	} `json:"items"`
}

func (m *MetricsClient) NodeMetrics(ctx context.Context) (map[string]Usage, error) {
	raw, err := m.get(ctx, nodeMetricsPath)
	if err != nil {
		return nil, err
	}
	var list usageList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode node metrics: %w", err)
	}
	out := make(map[string]Usage, len(list.Items))
	for _, it := range list.Items {
		out[it.Metadata.Name] = parseUsage(it.Usage)
	}
	return out, nil
}

func (m *MetricsClient) PodMetrics(ctx context.Context) ([]PodUsage, error) {
	raw, err := m.get(ctx, podMetricsPath)
	if err != nil {
		return nil, err
	}
	var list usageList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode pod metrics: %w", err)
	}
	out := make([]PodUsage, 0, len(list.Items))
	for _, it := range list.Items {
		pu := PodUsage{Namespace: it.Metadata.Namespace, Name: it.Metadata.Name}
		for _, c := range it.Containers {
			u := parseUsage(c.Usage)
			pu.CPU += u.CPU
			pu.Memory += u.Memory
		}
		out = append(out, pu)
	}
	return out, nil
}

func parseUsage(u map[string]string) Usage {
	return Usage{CPU: ParseCPU(u["cpu"]), Memory: ParseMemory(u["memory"])}
}

// ParseCPU converts a quantity such as "250m" or "1500000n" to cores.
// Unparseable input yields 0.
func ParseCPU(s string) float64 {
	if s == "" {
		return 0
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0
	}
	return float64(q.MilliValue()) / 1000.0
}

// ParseMemory converts a quantity such as "512Mi" or "1G" to bytes.
func ParseMemory(s string) float64 {
	if s == "" {
		return 0
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0
	}
	return q.AsApproximateFloat64()
}
