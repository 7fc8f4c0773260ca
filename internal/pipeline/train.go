// Package pipeline wires the feature engine into end-to-end training and
// serving flows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/clean"
	"github.com/rcliao/churn-features/internal/dataset"
	"github.com/rcliao/churn-features/internal/encode"
	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/schema"
	"github.com/rcliao/churn-features/internal/tracking"
	"github.com/rcliao/churn-features/internal/validate"
)

// TrainOptions configures Train.
type TrainOptions struct {
	CSV       string
	Target    string
	ModelDir  string
	TestSize  float64
	Threshold float64
	Seed      int64

	Trainer classifier.Trainer // nil means logistic regression with defaults

	// Tracker records the run when set.
	Tracker    tracking.Store
	Experiment string
	RunName    string

	Logger *slog.Logger
}

// TrainResult summarizes a finished training run.
type TrainResult struct {
	RunID      string             `json:"run_id,omitempty"`
	Rows       int                `json:"rows"`
	Columns    []string           `json:"columns"`
	SchemaPath string             `json:"schema_path"`
	ModelPath  string             `json:"model_path,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
	Cleaning   clean.Report       `json:"cleaning"`
	Report     string             `json:"-"`
}

// saver is implemented by scorers that can persist themselves.
type saver interface {
	Save(path string) error
}

// Train loads the dataset, discovers and saves the feature schema, fits a
// scorer and evaluates it on a held-out split. The schema is written
// before fitting so serving can start from it even if training fails.
func Train(ctx context.Context, opts TrainOptions) (*TrainResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	trainer := opts.Trainer
	if trainer == nil {
		trainer = classifier.LogisticTrainer{Config: classifier.DefaultLogisticConfig()}
	}

	var runID string
	if opts.Tracker != nil {
		run, err := opts.Tracker.CreateRun(ctx, tracking.CreateRunParams{Experiment: opts.Experiment, Name: opts.RunName})
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		runID = run.ID
		logger = logger.With("run_id", runID)
	}

	res, err := train(ctx, opts, trainer, logger)
	if res != nil {
		res.RunID = runID
	}

	if opts.Tracker != nil {
		if terr := record(ctx, opts, runID, res, err); terr != nil {
			logger.Warn("tracking failed", "error", terr)
		}
	}
	return res, err
}

func train(ctx context.Context, opts TrainOptions, trainer classifier.Trainer, logger *slog.Logger) (*TrainResult, error) {
	raw, err := dataset.LoadCSV(opts.CSV)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded", "path", opts.CSV, "rows", raw.Len(), "columns", len(raw.Columns))

	if res := validate.RequireColumns(raw, []string{opts.Target}); !res.OK {
		return nil, fmt.Errorf("invalid dataset: %v", res.Problems)
	}
	for _, p := range validate.Sanity(raw).Problems {
		logger.Warn("data check", "problem", p)
	}

	cleaned, rep := clean.Clean(raw, clean.Options{Target: opts.Target})
	if len(rep.DuplicateHeaders) > 0 {
		logger.Warn("duplicate headers collapsed", "headers", rep.DuplicateHeaders)
	}
	if rep.UnmappedTargets > 0 {
		logger.Warn("unmapped target values", "column", opts.Target, "count", rep.UnmappedTargets)
	}
	for col, n := range rep.CoercionFailures {
		logger.Debug("coercion failures", "column", col, "count", n)
	}

	encoded, s, err := encode.Discover(cleaned, opts.Target)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	res := &TrainResult{
		Rows:       encoded.Len(),
		Columns:    s.Columns(),
		SchemaPath: filepath.Join(opts.ModelDir, schema.FileName),
		Cleaning:   rep,
	}
	if err := schema.Save(s, res.SchemaPath); err != nil {
		return res, fmt.Errorf("save schema: %w", err)
	}
	logger.Info("schema saved", "path", res.SchemaPath, "columns", s.Len())

	X, y, err := dataset.SplitTarget(encoded, opts.Target, s)
	if err != nil {
		return res, err
	}
	xTrain, xTest, yTrain, yTest := dataset.TrainTestSplit(X.Rows, y, opts.TestSize, opts.Seed)
	if len(xTrain) == 0 || len(xTest) == 0 {
		return res, fmt.Errorf("split of %d rows with test size %v leaves an empty side", len(X.Rows), opts.TestSize)
	}

	start := time.Now()
	scorer, err := trainer.Fit(ctx, model.Matrix{Columns: X.Columns, Rows: xTrain}, yTrain)
	if err != nil {
		return res, fmt.Errorf("fit: %w", err)
	}
	trainTime := time.Since(start)

	start = time.Now()
	proba, err := scorer.PredictProba(ctx, model.Matrix{Columns: X.Columns, Rows: xTest})
	if err != nil {
		return res, fmt.Errorf("score test split: %w", err)
	}
	predTime := time.Since(start)

	res.Metrics = classifier.Evaluate(yTest, proba, opts.Threshold)
	res.Metrics["train_time"] = trainTime.Seconds()
	res.Metrics["pred_time"] = predTime.Seconds()
	res.Report = classifier.Report(yTest, proba, opts.Threshold)
	logger.Info("model evaluated",
		"recall", res.Metrics["recall"],
		"roc_auc", res.Metrics["roc_auc"],
		"train_time", trainTime,
	)

	if sv, ok := scorer.(saver); ok {
		res.ModelPath = filepath.Join(opts.ModelDir, classifier.ArtifactName)
		if err := sv.Save(res.ModelPath); err != nil {
			return res, fmt.Errorf("save model: %w", err)
		}
		logger.Info("model saved", "path", res.ModelPath)
	}
	return res, nil
}

// record logs params, metrics and artifacts, then finishes the run.
func record(ctx context.Context, opts TrainOptions, runID string, res *TrainResult, runErr error) error {
	params := map[string]string{
		"csv":       opts.CSV,
		"target":    opts.Target,
		"test_size": strconv.FormatFloat(opts.TestSize, 'g', -1, 64),
		"threshold": strconv.FormatFloat(opts.Threshold, 'g', -1, 64),
		"seed":      strconv.FormatInt(opts.Seed, 10),
		"model":     fmt.Sprintf("%T", opts.Trainer),
	}
	if opts.Trainer == nil {
		params["model"] = "logistic"
	}
	var errs []error
	errs = append(errs, opts.Tracker.LogParams(ctx, runID, params))

	if res != nil {
		if len(res.Metrics) > 0 {
			errs = append(errs, opts.Tracker.LogMetrics(ctx, runID, res.Metrics))
		}
		for _, p := range []string{res.SchemaPath, res.ModelPath} {
			if p == "" {
				continue
			}
			if _, err := os.Stat(p); err == nil {
				errs = append(errs, opts.Tracker.LogArtifact(ctx, runID, p))
			}
		}
	}

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	errs = append(errs, opts.Tracker.FinishRun(ctx, runID, msg))
	return errors.Join(errs...)
}
