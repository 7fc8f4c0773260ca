package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rcliao/churn-features/internal/align"
	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/schema"
)

// ErrMissingLabel is returned when a training row has no usable target.
var ErrMissingLabel = errors.New("missing label")

// SplitTarget aligns the feature columns of f to s and extracts the 0/1
// target column.
func SplitTarget(f model.Frame, target string, s *schema.Schema) (model.Matrix, []float64, error) {
	y := make([]float64, len(f.Rows))
	var bad int
	for i, r := range f.Rows {
		v, ok := model.AsFloat(r[target])
		if !ok || model.IsMissing(r[target]) {
			bad++
			continue
		}
		y[i] = v
	}
	if bad > 0 {
		return model.Matrix{}, nil, fmt.Errorf("%w: %d of %d rows have no %q value", ErrMissingLabel, bad, len(f.Rows), target)
	}

	X, err := align.Align(f, s)
	if err != nil {
		return model.Matrix{}, nil, err
	}
	return X, y, nil
}

// TrainTestSplit shuffles rows with the given seed and holds out testSize
// of them.
func TrainTestSplit(X [][]float64, y []float64, testSize float64, seed int64) (XTrain, XTest [][]float64, yTrain, yTest []float64) {
	rng := rand.New(rand.NewSource(seed))
	n := len(X)
	indices := rng.Perm(n)
	nTest := int(float64(n) * testSize)
	for i := range n {
		if i < nTest {
			XTest = append(XTest, X[indices[i]])
			yTest = append(yTest, y[indices[i]])
		} else {
			XTrain = append(XTrain, X[indices[i]])
			yTrain = append(yTrain, y[indices[i]])
		}
	}
	return
}
