package predict

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"kagent/internal/model"
)

const (
	forestTrees     = 100
	forestSubsample = 256
	forestSeed      = 42
	eulerGamma      = 0.5772156649015329
)

// Features is the per-node feature vector order used by the anomaly model.
var Features = []string{"cpu_usage", "memory_usage", "disk_pressure", "memory_pressure", "pid_pressure"}

var ErrNotTrained = errors.New("anomaly model not trained")

var ErrTooManySamples = errors.New("too many training samples requested")

// Scaler standardizes each feature to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func fitScaler(samples [][]float64) Scaler {
	dim := len(samples[0])
	s := Scaler{Mean: make([]float64, dim), Std: make([]float64, dim)}
	n := float64(len(samples))
	for _, x := range samples {
		for j, v := range x {
			s.Mean[j] += v / n
		}
	}
	for _, x := range samples {
		for j, v := range x {
			d := v - s.Mean[j]
			s.Std[j] += d * d / n
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j])
		// constant feature: leave it centred but unscaled
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return s
}

func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j >= len(s.Mean) {
			out[j] = v
			continue
		}
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// itree is one isolation tree. A node without children is a leaf and
// records how many training points reached it.
type itree struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Size    int     `json:"n,omitempty"`
	Left    *itree  `json:"l,omitempty"`
	Right   *itree  `json:"r,omitempty"`
}

func (t *itree) leaf() bool { return t.Left == nil && t.Right == nil }

func buildTree(rng *rand.Rand, data [][]float64, depth, maxDepth int) *itree {
	if depth >= maxDepth || len(data) <= 1 {
		return &itree{Size: len(data)}
	}

	dim := len(data[0])
	var candidates []int
	lo := make([]float64, dim)
	hi := make([]float64, dim)
	for j := 0; j < dim; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
		for _, x := range data {
			lo[j] = math.Min(lo[j], x[j])
			hi[j] = math.Max(hi[j], x[j])
		}
		if hi[j] > lo[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &itree{Size: len(data)}
	}

	f := candidates[rng.IntN(len(candidates))]
	split := lo[f] + rng.Float64()*(hi[f]-lo[f])

	var left, right [][]float64
	for _, x := range data {
		if x[f] < split {
			left = append(left, x)
		} else {
			right = append(right, x)
		}
	}
	return &itree{
		Feature: f,
		Split:   split,
		Left:    buildTree(rng, left, depth+1, maxDepth),
		Right:   buildTree(rng, right, depth+1, maxDepth),
	}
}

func (t *itree) pathLength(x []float64) float64 {
	depth := 0.0
	n := t
	for !n.leaf() {
		if x[n.Feature] < n.Split {
			n = n.Left
		} else {
			n = n.Right
		}
		depth++
	}
	return depth + averagePath(n.Size)
}

// averagePath is c(n), the mean path length of an unsuccessful BST search.
func averagePath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// AnomalyModel is an isolation forest over standardized node features.
type AnomalyModel struct {
	Scaler        Scaler    `json:"scaler"`
	Trees         []*itree  `json:"trees"`
	SampleSize    int       `json:"sample_size"`
	Threshold     float64   `json:"threshold"`
	Contamination float64   `json:"contamination"`
	Samples       int       `json:"samples"`
	Accuracy      float64   `json:"accuracy,omitempty"`
	TrainedAt     time.Time `json:"trained_at"`
}

// Train fits a forest on samples. The anomaly threshold is the score
// quantile that flags a contamination share of the training data.
func Train(samples [][]float64, contamination float64) (*AnomalyModel, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("train anomaly model: need at least 2 samples, got %d", len(samples))
	}
	if contamination <= 0 || contamination > 0.5 {
		return nil, fmt.Errorf("train anomaly model: contamination %v outside (0, 0.5]", contamination)
	}
	for i, x := range samples {
		if len(x) != len(Features) {
			return nil, fmt.Errorf("train anomaly model: sample %d has %d features, want %d", i, len(x), len(Features))
		}
	}

	m := &AnomalyModel{
		Scaler:        fitScaler(samples),
		Contamination: contamination,
		Samples:       len(samples),
		SampleSize:    min(forestSubsample, len(samples)),
	}

	scaled := make([][]float64, len(samples))
	for i, x := range samples {
		scaled[i] = m.Scaler.Transform(x)
	}

	rng := rand.New(rand.NewPCG(forestSeed, forestSeed))
	maxDepth := int(math.Ceil(math.Log2(float64(m.SampleSize))))
	m.Trees = make([]*itree, 0, forestTrees)
	for t := 0; t < forestTrees; t++ {
		sub := make([][]float64, m.SampleSize)
		for i, k := range rng.Perm(len(scaled))[:m.SampleSize] {
			sub[i] = scaled[k]
		}
		m.Trees = append(m.Trees, buildTree(rng, sub, 0, maxDepth))
	}

	scores := make([]float64, len(scaled))
	for i, x := range scaled {
		scores[i] = m.score(x)
	}
	sort.Float64s(scores)
	idx := int(float64(len(scores)) * (1 - contamination))
	if idx > len(scores)-1 {
		idx = len(scores) - 1
	}
	m.Threshold = scores[idx]
	return m, nil
}

func (m *AnomalyModel) score(scaled []float64) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range m.Trees {
		sum += t.pathLength(scaled)
	}
	c := averagePath(m.SampleSize)
	if c == 0 {
		return 0
	}
	return math.Pow(2, -(sum/float64(len(m.Trees)))/c)
}

// Score returns the anomaly score of a raw feature vector. Scores near 1
// are isolated quickly; scores well below 0.5 are ordinary.
func (m *AnomalyModel) Score(x []float64) float64 {
	return m.score(m.Scaler.Transform(x))
}

// IsAnomaly reports whether x scores strictly above the trained threshold.
func (m *AnomalyModel) IsAnomaly(x []float64) bool {
	return m.Score(x) > m.Threshold
}

func (m *AnomalyModel) Info() model.ModelInfo {
	return model.ModelInfo{
		ModelType:     "IsolationForest",
		Trained:       true,
		TrainedAt:     m.TrainedAt,
		Samples:       m.Samples,
		Features:      Features,
		Contamination: m.Contamination,
		Trees:         len(m.Trees),
		Accuracy:      m.Accuracy,
	}
}

// MockInfo is served while no model has been trained.
func MockInfo(now time.Time) model.ModelInfo {
	return model.ModelInfo{
		ModelType:     "IsolationForest",
		TrainedAt:     now,
		Features:      Features,
		Contamination: 0.1,
		Trees:         forestTrees,
		Accuracy:      0.92,
	}
}

func nodeFeatures(n model.NodeMetrics) []float64 {
	return []float64{n.CPUUsage, n.MemoryUsage, flag(n.DiskPressure), flag(n.MemoryPressure), flag(n.PIDPressure)}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
