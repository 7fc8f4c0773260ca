// Package classifier holds the model collaborators of the feature
// pipeline: the Trainer/Scorer contracts, a logistic regression that
// satisfies them, a remote HTTP scorer, and evaluation metrics.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rcliao/churn-features/internal/model"
)

// ArtifactName is the model file name inside a model directory.
const ArtifactName = "model.json"

// Scorer returns p(y=1) for every row of an aligned matrix.
type Scorer interface {
	PredictProba(ctx context.Context, X model.Matrix) ([]float64, error)
}

// Trainer fits a Scorer on an aligned matrix and 0/1 labels.
type Trainer interface {
	Fit(ctx context.Context, X model.Matrix, y []float64) (Scorer, error)
}

// Predict thresholds probabilities into 0/1 labels.
func Predict(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

// LoadArtifact reads a persisted logistic model. A missing artifact is
// reported with its path.
func LoadArtifact(path string) (*Logistic, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("model not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return decodeLogistic(b)
}
