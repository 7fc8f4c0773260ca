package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rcliao/churn-features/internal/model"
)

// LogisticConfig holds the trainer hyperparameters.
type LogisticConfig struct {
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	L2           float64 `json:"l2"`
	Seed         int64   `json:"seed"`
}

// DefaultLogisticConfig returns settings that converge on telco-sized data.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{LearningRate: 0.1, Epochs: 200, BatchSize: 256, L2: 1e-4, Seed: 42}
}

// LogisticTrainer fits a binary logistic regression with mini-batch
// gradient descent on standardized features.
type LogisticTrainer struct {
	Config LogisticConfig
}

// Logistic is a fitted logistic regression. Features are standardized
// with the training mean and scale before the linear term.
type Logistic struct {
	Columns []string  `json:"columns"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Fit trains on X and y. It stops early when ctx is cancelled.
func (t LogisticTrainer) Fit(ctx context.Context, X model.Matrix, y []float64) (Scorer, error) {
	cfg := t.Config
	if cfg.Epochs <= 0 || cfg.LearningRate <= 0 {
		cfg = DefaultLogisticConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = len(X.Rows)
	}
	if len(X.Rows) == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	if len(X.Rows) != len(y) {
		return nil, fmt.Errorf("rows (%d) and labels (%d) differ", len(X.Rows), len(y))
	}

	nf := len(X.Columns)
	m := &Logistic{
		Columns: append([]string(nil), X.Columns...),
		Weights: make([]float64, nf),
		Mean:    make([]float64, nf),
		Scale:   make([]float64, nf),
	}
	m.standardize(X.Rows)

	rng := rand.New(rand.NewSource(cfg.Seed))
	for j := range m.Weights {
		m.Weights[j] = rng.NormFloat64() * 0.01
	}

	Z := make([][]float64, len(X.Rows))
	for i, row := range X.Rows {
		Z[i] = m.transform(row)
	}

	for ep := 0; ep < cfg.Epochs; ep++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		order := rng.Perm(len(Z))
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(order))
			gW := make([]float64, nf)
			gb := 0.0
			for _, idx := range order[start:end] {
				row := Z[idx]
				d := sigmoid(m.linear(row)) - y[idx]
				for j, v := range row {
					gW[j] += d * v
				}
				gb += d
			}
			n := float64(end - start)
			for j := range m.Weights {
				m.Weights[j] -= cfg.LearningRate * (gW[j]/n + cfg.L2*m.Weights[j])
			}
			m.Bias -= cfg.LearningRate * gb / n
		}
	}
	return m, nil
}

func (m *Logistic) standardize(rows [][]float64) {
	n := float64(len(rows))
	for _, r := range rows {
		for j, v := range r {
			m.Mean[j] += v / n
		}
	}
	for _, r := range rows {
		for j, v := range r {
			d := v - m.Mean[j]
			m.Scale[j] += d * d / n
		}
	}
	for j := range m.Scale {
		m.Scale[j] = math.Sqrt(m.Scale[j])
		if m.Scale[j] == 0 {
			m.Scale[j] = 1
		}
	}
}

func (m *Logistic) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - m.Mean[j]) / m.Scale[j]
	}
	return out
}

func (m *Logistic) linear(z []float64) float64 {
	sum := m.Bias
	for j, v := range z {
		sum += m.Weights[j] * v
	}
	return sum
}

// PredictProba scores rows in parallel across GOMAXPROCS workers. The
// matrix columns must match the columns the model was trained on.
func (m *Logistic) PredictProba(_ context.Context, X model.Matrix) ([]float64, error) {
	if len(X.Columns) != len(m.Columns) {
		return nil, fmt.Errorf("matrix has %d columns, model expects %d", len(X.Columns), len(m.Columns))
	}
	for j, c := range X.Columns {
		if m.Columns[j] != c {
			return nil, fmt.Errorf("column %d is %q, model expects %q", j, c, m.Columns[j])
		}
	}
	if len(X.Rows) == 0 {
		return []float64{}, nil
	}

	out := make([]float64, len(X.Rows))
	workers := runtime.GOMAXPROCS(0)
	per := (len(X.Rows) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * per
		end := min(start+per, len(X.Rows))
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				out[i] = sigmoid(m.linear(m.transform(X.Rows[i])))
			}
		}(start, end)
	}
	wg.Wait()
	return out, nil
}

// FeatureColumns returns the column order the model was fitted on.
func (m *Logistic) FeatureColumns() []string { return m.Columns }

// Save writes the model as JSON to path. The file is replaced
// atomically so a watching server never reads a partial model.
func (m *Logistic) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".model-*")
	if err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func decodeLogistic(b []byte) (*Logistic, error) {
	var m Logistic
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	n := len(m.Columns)
	if len(m.Weights) != n || len(m.Mean) != n || len(m.Scale) != n {
		return nil, fmt.Errorf("decode model: inconsistent dimensions")
	}
	return &m, nil
}
