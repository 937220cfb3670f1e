package predict

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"kagent/internal/model"
	"kagent/internal/store"
)

const (
	modelKey = "anomaly"

	defaultTrainSamples = 1000
	// MaxTrainSamples bounds the synthetic sample count a caller may request.
	MaxTrainSamples = 100000
	// minHistorySamples is the number of recorded node observations below
	// which training falls back to synthetic data.
	minHistorySamples = 50
)

// Trainer fits the anomaly model and installs it into the predictor.
type Trainer struct {
	predictor *Predictor
	store     *store.Store
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewTrainer builds a trainer. st may be nil, in which case models are not persisted.
func NewTrainer(p *Predictor, st *store.Store, clock clockwork.Clock, logger *zap.Logger) *Trainer {
	return &Trainer{predictor: p, store: st, clock: clock, logger: logger.Named("trainer")}
}

// Train fits a model from the recorded metrics history, or from synthetic
// samples when the history is too short.
func (t *Trainer) Train(params model.TrainParams) (model.TrainResult, error) {
	now := t.clock.Now()
	jobID := "train_" + now.Format("20060102150405")

	contamination := params.Contamination
	if contamination == 0 {
		contamination = t.predictor.Thresholds().Contamination
	}
	n := params.Samples
	if n > MaxTrainSamples {
		return model.TrainResult{Status: "error", Message: ErrTooManySamples.Error(), JobID: jobID},
			fmt.Errorf("%w: %d", ErrTooManySamples, n)
	}
	if n <= 0 {
		n = defaultTrainSamples
	}

	samples := historySamples(t.predictor.History())
	source := "metrics history"
	var labels []bool
	if len(samples) < minHistorySamples {
		samples, labels = syntheticSamples(n, uint64(now.UnixNano()))
		source = "synthetic data"
	}

	m, err := Train(samples, contamination)
	if err != nil {
		return model.TrainResult{Status: "error", Message: err.Error(), JobID: jobID}, err
	}
	m.TrainedAt = now
	if labels != nil {
		m.Accuracy = accuracy(m, samples, labels)
	}

	if t.store != nil {
		if err := t.store.Put(store.BucketModels, modelKey, m); err != nil {
			return model.TrainResult{Status: "error", Message: err.Error(), JobID: jobID}, fmt.Errorf("save model: %w", err)
		}
	}
	t.predictor.SetModel(m)

	t.logger.Info("model trained",
		zap.String("job_id", jobID),
		zap.String("source", source),
		zap.Int("samples", len(samples)),
		zap.Float64("contamination", contamination),
	)
	return model.TrainResult{
		Status:  "success",
		Message: fmt.Sprintf("Model trained on %d samples from %s", len(samples), source),
		JobID:   jobID,
	}, nil
}

// LoadModel reads the persisted model, returning ErrNotTrained when none exists.
func LoadModel(st *store.Store) (*AnomalyModel, error) {
	var m AnomalyModel
	if err := st.Get(store.BucketModels, modelKey, &m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotTrained
		}
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &m, nil
}

func historySamples(snaps []*model.ClusterMetrics) [][]float64 {
	var out [][]float64
	for _, s := range snaps {
		for name, n := range s.Nodes {
			if name == model.ClusterNode {
				continue
			}
			out = append(out, nodeFeatures(n))
		}
	}
	return out
}

// syntheticSamples draws 90% ordinary nodes and 10% loaded ones. labels[i]
// is true for the loaded draws.
func syntheticSamples(n int, seed uint64) ([][]float64, []bool) {
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	anomalies := n / 10
	samples := make([][]float64, 0, n)
	labels := make([]bool, 0, n)
	for i := 0; i < n; i++ {
		hot := i >= n-anomalies
		mean, sd, p := 50.0, 15.0, 0.02
		if hot {
			mean, sd, p = 88, 6, 0.5
		}
		samples = append(samples, []float64{
			clip(mean + rng.NormFloat64()*sd),
			clip(mean + rng.NormFloat64()*sd),
			flag(rng.Float64() < p),
			flag(rng.Float64() < p),
			flag(rng.Float64() < p),
		})
		labels = append(labels, hot)
	}
	return samples, labels
}

func clip(v float64) float64 {
	return max(0, min(100, v))
}

func accuracy(m *AnomalyModel, samples [][]float64, labels []bool) float64 {
	if len(samples) == 0 {
		return 0
	}
	right := 0
	for i, x := range samples {
		if m.IsAnomaly(x) == labels[i] {
			right++
		}
	}
	return float64(right) / float64(len(samples))
}
