package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"

	"github.com/rcliao/churn-features/internal/align"
	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/clean"
	"github.com/rcliao/churn-features/internal/encode"
	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/schema"
	"github.com/rcliao/churn-features/internal/validate"
)

// ValidationError carries the validator response for a rejected batch.
type ValidationError struct {
	Result validate.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %d problem(s)", len(e.Result.Problems))
}

// ErrModelMismatch reports a schema whose columns differ from the ones
// the scorer was fitted on.
var ErrModelMismatch = errors.New("schema does not match model")

// serving is the schema and scorer a request is answered with. They are
// swapped together so a request never pairs a new schema with an old
// model.
type serving struct {
	schema *schema.Schema
	scorer classifier.Scorer
}

// columnar is implemented by scorers that know their feature order.
type columnar interface {
	FeatureColumns() []string
}

// Predictor scores raw customer records against the active schema.
// It is safe for concurrent use: each call reads the schema and scorer
// once and works on its own copy of the batch.
type Predictor struct {
	cur      atomic.Pointer[serving]
	contract validate.Contract
	target   string
	logger   *slog.Logger
}

// NewPredictor returns a Predictor using the telco record contract.
// target is the label column, ignored if a payload happens to carry it.
// A scorer that reports its feature columns must agree with s.
func NewPredictor(s *schema.Schema, scorer classifier.Scorer, target string, logger *slog.Logger) (*Predictor, error) {
	p := newPredictor(target, logger)
	if err := p.swap(s, scorer); err != nil {
		return nil, err
	}
	return p, nil
}

func newPredictor(target string, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Predictor{
		contract: validate.TelcoContract(),
		target:   target,
		logger:   logger,
	}
}

// swap installs a new schema and scorer pair. A mismatched pair is
// refused and the active one kept.
func (p *Predictor) swap(s *schema.Schema, scorer classifier.Scorer) error {
	if c, ok := scorer.(columnar); ok {
		want := c.FeatureColumns()
		if !slices.Equal(want, s.Columns()) {
			return fmt.Errorf("%w: schema has %d columns, model expects %d", ErrModelMismatch, s.Len(), len(want))
		}
	}
	p.cur.Store(&serving{schema: s, scorer: scorer})
	return nil
}

// Schema returns the schema the next call will align to.
func (p *Predictor) Schema() *schema.Schema {
	if cur := p.cur.Load(); cur != nil {
		return cur.schema
	}
	return nil
}

// Features validates, cleans, encodes and aligns records. The matrix has
// one row per record, in input order, and the active schema's columns.
func (p *Predictor) Features(records []model.Record) (model.Matrix, error) {
	return p.features(p.cur.Load().schema, records)
}

func (p *Predictor) features(s *schema.Schema, records []model.Record) (model.Matrix, error) {
	if res := validate.Validate(records, p.contract); !res.OK {
		return model.Matrix{}, &ValidationError{Result: res}
	}

	cleaned, rep := clean.Clean(model.NewFrame(records), clean.Options{Target: p.target})
	if len(rep.CoercionFailures) > 0 {
		p.logger.Debug("coercion failures", "counts", rep.CoercionFailures)
	}

	encoded, err := encode.Reconcile(cleaned, p.target, s)
	if err != nil {
		return model.Matrix{}, fmt.Errorf("encode: %w", err)
	}
	return align.Align(encoded, s)
}

// Predict returns the churn probability of each record, rounded to six
// decimals.
func (p *Predictor) Predict(ctx context.Context, records []model.Record) ([]float64, error) {
	cur := p.cur.Load()
	X, err := p.features(cur.schema, records)
	if err != nil {
		return nil, err
	}
	proba, err := cur.scorer.PredictProba(ctx, X)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	for i, v := range proba {
		proba[i] = math.Round(v*1e6) / 1e6
	}
	return proba, nil
}
