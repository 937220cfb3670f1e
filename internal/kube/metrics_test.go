package kube

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const nodeBody = `{"items":[
 {"metadata":{"name":"node-1"},"usage":{"cpu":"500m","memory":"2Gi"}},
 {"metadata":{"name":"node-2"},"usage":{"cpu":"1500000000n","memory":"1024Ki"}}
]}`

const podBody = `{"items":[
 {"metadata":{"name":"web","namespace":"shop"},"containers":[
   {"usage":{"cpu":"100m","memory":"64Mi"}},
   {"usage":{"cpu":"50m","memory":"64Mi"}}
 ]}
]}`

func TestNodeMetricsParsesQuantities(t *testing.T) {
	m := NewMetricsClientWithFetch(func(ctx context.Context, path string) ([]byte, error) {
		require.Equal(t, nodeMetricsPath, path)
		return []byte(nodeBody), nil
	}, zap.NewNop())

	got, err := m.NodeMetrics(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got["node-1"].CPU, 1e-9)
	assert.InDelta(t, 2*1024*1024*1024, got["node-1"].Memory, 1)
	assert.InDelta(t, 1.5, got["node-2"].CPU, 1e-9)
	assert.InDelta(t, 1024*1024, got["node-2"].Memory, 1)
}

func TestPodMetricsSumsContainers(t *testing.T) {
	m := NewMetricsClientWithFetch(func(ctx context.Context, path string) ([]byte, error) {
		return []byte(podBody), nil
	}, zap.NewNop())

	got, err := m.PodMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "shop", got[0].Namespace)
	assert.InDelta(t, 0.15, got[0].CPU, 1e-9)
	assert.InDelta(t, 128*1024*1024, got[0].Memory, 1)
}

func TestBreakerOpensAfterFiveFailures(t *testing.T) {
	calls := 0
	m := NewMetricsClientWithFetch(func(ctx context.Context, path string) ([]byte, error) {
		calls++
		return nil, errors.New("service unavailable")
	}, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := m.NodeMetrics(context.Background())
		assert.ErrorIs(t, err, ErrMetricsUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, m.State())

	_, err := m.PodMetrics(context.Background())
	assert.ErrorIs(t, err, ErrMetricsUnavailable)
	assert.Equal(t, 5, calls, "open breaker must not call the API")
}

func TestParseQuantities(t *testing.T) {
	tests := []struct {
		in  string
		cpu float64
		mem float64
	}{
		{"", 0, 0},
		{"2", 2, 2},
		{"250m", 0.25, 0.25},
		{"1k", 1000, 1000},
		{"1Mi", 1048576, 1048576},
		{"garbage", 0, 0},
	}
	for _, tt := range tests {
		if got := ParseCPU(tt.in); math.Abs(got-tt.cpu) > 1e-9 {
			t.Errorf("ParseCPU(%q) = %v, want %v", tt.in, got, tt.cpu)
		}
		if got := ParseMemory(tt.in); math.Abs(got-tt.mem) > 1e-9 {
			t.Errorf("ParseMemory(%q) = %v, want %v", tt.in, got, tt.mem)
		}
	}
}
