package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/schema"
	"github.com/rcliao/churn-features/internal/testutil"
	"github.com/rcliao/churn-features/internal/tracking"
)

func newTracker(t *testing.T) *tracking.SQLiteStore {
	t.Helper()
	s, err := tracking.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trainOpts(t *testing.T) TrainOptions {
	dir := t.TempDir()
	return TrainOptions{
		CSV:       testutil.WriteTelcoCSV(t, dir, 240),
		Target:    "Churn",
		ModelDir:  filepath.Join(dir, "models"),
		TestSize:  0.2,
		Threshold: 0.5,
		Seed:      42,
		Logger:    testutil.NewTestLogger(t),
	}
}

func TestTrain_EndToEnd(t *testing.T) {
	ctx := context.Background()
	opts := trainOpts(t)
	opts.Tracker = newTracker(t)
	opts.Experiment = "churn-ml"

	res, err := Train(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, 240, res.Rows)
	assert.Contains(t, res.Columns, "gender")
	assert.Contains(t, res.Columns, "InternetService_Fiber optic")
	assert.Contains(t, res.Columns, "InternetService_No")
	assert.NotContains(t, res.Columns, "InternetService_DSL")
	assert.NotContains(t, res.Columns, "Churn")
	assert.NotContains(t, res.Columns, "customerID")
	assert.Equal(t, 1, res.Cleaning.FilledMissing["TotalCharges"])

	saved, err := schema.Load(res.SchemaPath)
	require.NoError(t, err)
	assert.Equal(t, res.Columns, saved.Columns())
	assert.FileExists(t, res.ModelPath)

	for _, k := range []string{"accuracy", "precision", "recall", "f1", "roc_auc", "train_time", "pred_time"} {
		assert.Contains(t, res.Metrics, k)
	}
	assert.Contains(t, res.Report, "recall")

	run, err := opts.Tracker.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, "Churn", run.Params["target"])
	assert.Equal(t, "logistic", run.Params["model"])
	assert.Equal(t, res.Metrics["recall"], run.Metrics["recall"])
	assert.Len(t, run.Artifacts, 2)
}

func TestTrain_Deterministic(t *testing.T) {
	opts := trainOpts(t)
	a, err := Train(context.Background(), opts)
	require.NoError(t, err)
	b, err := Train(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, a.Columns, b.Columns)
	assert.Equal(t, a.Metrics["roc_auc"], b.Metrics["roc_auc"])
}

func TestTrain_MissingTarget(t *testing.T) {
	ctx := context.Background()
	opts := trainOpts(t)
	opts.Target = "Exited"
	opts.Tracker = newTracker(t)

	res, err := Train(ctx, opts)
	assert.ErrorContains(t, err, `missing column "Exited"`)
	assert.Nil(t, res)

	runs, _ := opts.Tracker.ListRuns(ctx, tracking.ListParams{})
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunFailed, runs[0].Status)
}

func TestTrain_MissingDataset(t *testing.T) {
	opts := trainOpts(t)
	opts.CSV = filepath.Join(t.TempDir(), "nope.csv")
	_, err := Train(context.Background(), opts)
	assert.ErrorContains(t, err, "nope.csv")
}

func TestTrain_SchemaWrittenBeforeFit(t *testing.T) {
	opts := trainOpts(t)
	opts.Trainer = failingTrainer{}

	res, err := Train(context.Background(), opts)
	assert.ErrorContains(t, err, "fit")
	require.NotNil(t, res)
	assert.FileExists(t, res.SchemaPath)
	assert.NoFileExists(t, filepath.Join(opts.ModelDir, classifier.ArtifactName))
}

type failingTrainer struct{}

func (failingTrainer) Fit(context.Context, model.Matrix, []float64) (classifier.Scorer, error) {
	return nil, errors.New("no convergence")
}

// captureScorer records the matrix it was asked to score.
type captureScorer struct {
	mu   sync.Mutex
	last model.Matrix
}

func (c *captureScorer) PredictProba(_ context.Context, X model.Matrix) ([]float64, error) {
	c.mu.Lock()
	c.last = X
	c.mu.Unlock()
	out := make([]float64, len(X.Rows))
	for i := range out {
		out[i] = 1.0 / 3
	}
	return out, nil
}

func newTestPredictor(t *testing.T, cols []string, sc classifier.Scorer) *Predictor {
	t.Helper()
	s, err := schema.New(cols)
	require.NoError(t, err)
	p, err := NewPredictor(s, sc, "Churn", testutil.NewTestLogger(t))
	require.NoError(t, err)
	return p
}

var trainedColumns = []string{
	"gender", "SeniorCitizen", "Partner", "tenure",
	"MultipleLines_No phone service", "MultipleLines_Yes",
	"InternetService_Fiber optic", "InternetService_No",
	"Contract_One year", "Contract_Two year",
	"MonthlyCharges", "TotalCharges",
}

func TestPredictor_SingleRecordAlignsToSchema(t *testing.T) {
	sc := &captureScorer{}
	p := newTestPredictor(t, trainedColumns, sc)

	proba, err := p.Predict(context.Background(), []model.Record{testutil.TelcoRecord()})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.333333}, proba)

	X := sc.last
	require.Len(t, X.Rows, 1)
	assert.Equal(t, trainedColumns, X.Columns)
	row := map[string]float64{}
	for j, c := range X.Columns {
		row[c] = X.Rows[0][j]
	}
	assert.Equal(t, 0.0, row["gender"])
	assert.Equal(t, 1.0, row["Partner"])
	assert.Equal(t, 0.0, row["InternetService_Fiber optic"])
	assert.Equal(t, 0.0, row["InternetService_No"])
	assert.Equal(t, 1.0, row["MultipleLines_No phone service"])
	assert.Equal(t, 0.0, row["Contract_One year"])
	assert.Equal(t, 1.0, row["tenure"])
	assert.Equal(t, 29.85, row["TotalCharges"])
}

func TestPredictor_GuideKeepsOneHotColumns(t *testing.T) {
	sc := &captureScorer{}
	p := newTestPredictor(t, trainedColumns, sc)

	r := testutil.TelcoRecord()
	r["PhoneService"] = "Yes"
	r["MultipleLines"] = "Yes"
	_, err := p.Predict(context.Background(), []model.Record{r})
	require.NoError(t, err)

	idx := p.Schema().Index("MultipleLines_Yes")
	assert.Equal(t, 1.0, sc.last.Rows[0][idx])
}

func TestPredictor_ValidationError(t *testing.T) {
	p := newTestPredictor(t, trainedColumns, &captureScorer{})

	r := testutil.TelcoRecord()
	delete(r, "tenure")
	r["Contract"] = "Weekly"
	_, err := p.Predict(context.Background(), []model.Record{r})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, verr.Result.OK)
	assert.Len(t, verr.Result.Problems, 2)

	_, err = p.Predict(context.Background(), nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Result.Problems[0], "empty payload")
}

func TestPredictor_DoesNotMutateInput(t *testing.T) {
	p := newTestPredictor(t, trainedColumns, &captureScorer{})
	r := testutil.TelcoRecord()
	_, err := p.Predict(context.Background(), []model.Record{r})
	require.NoError(t, err)
	assert.Equal(t, testutil.TelcoRecord(), r)
}

func TestPredictor_Concurrent(t *testing.T) {
	p := newTestPredictor(t, trainedColumns, &captureScorer{})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := testutil.TelcoRecord()
			r["tenure"] = int64(i)
			_, err := p.Predict(context.Background(), []model.Record{r, testutil.TelcoRecord()})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestTrainThenPredict(t *testing.T) {
	opts := trainOpts(t)
	res, err := Train(context.Background(), opts)
	require.NoError(t, err)

	s, err := schema.Load(res.SchemaPath)
	require.NoError(t, err)
	m, err := classifier.LoadArtifact(res.ModelPath)
	require.NoError(t, err)
	p, err := NewPredictor(s, m, opts.Target, nil)
	require.NoError(t, err)

	proba, err := p.Predict(context.Background(), []model.Record{testutil.TelcoRecord()})
	require.NoError(t, err)
	require.Len(t, proba, 1)
	assert.GreaterOrEqual(t, proba[0], 0.0)
	assert.LessOrEqual(t, proba[0], 1.0)
	assert.Equal(t, math.Round(proba[0]*1e6)/1e6, proba[0])

	_, err = os.Stat(res.SchemaPath)
	assert.NoError(t, err)
}

func TestNewPredictor_RejectsMismatchedModel(t *testing.T) {
	s, err := schema.New(trainedColumns[:3])
	require.NoError(t, err)
	m := zeroModel(trainedColumns)

	_, err = NewPredictor(s, m, "Churn", nil)
	assert.ErrorIs(t, err, ErrModelMismatch)
}

// zeroModel scores 0.5 for every row of cols.
func zeroModel(cols []string) *classifier.Logistic {
	n := len(cols)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	return &classifier.Logistic{
		Columns: slices.Clone(cols),
		Weights: make([]float64, n),
		Mean:    make([]float64, n),
		Scale:   scale,
	}
}

func TestOpenPredictor_SchemaAheadOfModelKeepsPair(t *testing.T) {
	ctx := context.Background()
	opts := trainOpts(t)
	res, err := Train(ctx, opts)
	require.NoError(t, err)

	p, h, err := OpenPredictor(ServingOptions{
		SchemaPath: res.SchemaPath,
		ModelPath:  res.ModelPath,
		Target:     opts.Target,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	before, err := p.Predict(ctx, []model.Record{testutil.TelcoRecord()})
	require.NoError(t, err)

	// A retrain writes the schema before the model is fitted.
	narrow := slices.DeleteFunc(slices.Clone(res.Columns), func(c string) bool { return c == "TotalCharges" })
	require.Len(t, narrow, len(res.Columns)-1)
	ns, err := schema.New(narrow)
	require.NoError(t, err)
	require.NoError(t, schema.Save(ns, res.SchemaPath))

	changed, err := h.Reload()
	assert.ErrorIs(t, err, ErrModelMismatch)
	assert.False(t, changed)
	assert.Equal(t, len(res.Columns), p.Schema().Len())
	assert.Equal(t, len(res.Columns), h.Current().Len())

	after, err := p.Predict(ctx, []model.Record{testutil.TelcoRecord()})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Once the matching model lands the pair moves together.
	require.NoError(t, zeroModel(narrow).Save(res.ModelPath))
	changed, err = h.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, narrow, p.Schema().Columns())

	proba, err := p.Predict(ctx, []model.Record{testutil.TelcoRecord()})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, proba)
}

func TestOpenPredictor_MissingModel(t *testing.T) {
	s, err := schema.New(trainedColumns)
	require.NoError(t, err)
	dir := t.TempDir()
	path := filepath.Join(dir, schema.FileName)
	require.NoError(t, schema.Save(s, path))

	_, _, err = OpenPredictor(ServingOptions{
		SchemaPath: path,
		ModelPath:  filepath.Join(dir, classifier.ArtifactName),
		Target:     "Churn",
	})
	assert.ErrorContains(t, err, "model not found")
}

func TestOpenPredictor_RemotePinsSchema(t *testing.T) {
	s, err := schema.New(trainedColumns)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), schema.FileName)
	require.NoError(t, schema.Save(s, path))

	sc := &captureScorer{}
	p, h, err := OpenPredictor(ServingOptions{SchemaPath: path, Remote: sc, Target: "Churn"})
	require.NoError(t, err)

	// Rewriting the same columns is accepted.
	require.NoError(t, schema.Save(s, path))
	_, err = h.Reload()
	require.NoError(t, err)

	wide, err := schema.New(append(slices.Clone(trainedColumns), "PaperlessBilling"))
	require.NoError(t, err)
	require.NoError(t, schema.Save(wide, path))
	_, err = h.Reload()
	assert.ErrorIs(t, err, ErrRemotePinned)
	assert.Equal(t, trainedColumns, p.Schema().Columns())

	_, err = p.Predict(context.Background(), []model.Record{testutil.TelcoRecord()})
	require.NoError(t, err)
	assert.Equal(t, trainedColumns, sc.last.Columns)
}
