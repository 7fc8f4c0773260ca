// Package tracking records training runs, their parameters, metrics and
// artifacts in a local SQLite database.
package tracking

import (
	"context"

	"github.com/rcliao/churn-features/internal/model"
)

// CreateRunParams holds parameters for starting a run.
type CreateRunParams struct {
	Experiment string
	Name       string
}

// ListParams holds parameters for listing runs.
type ListParams struct {
	Experiment string
	Status     string
	Limit      int
}

// RmParams holds parameters for deleting a run.
type RmParams struct {
	ID   string
	Hard bool
}

// Store defines the run tracking interface.
type Store interface {
	// CreateRun starts a run in the running state.
	CreateRun(ctx context.Context, p CreateRunParams) (*model.Run, error)

	// LogParams records string parameters. Re-logging a key overwrites it.
	LogParams(ctx context.Context, runID string, params map[string]string) error

	// LogMetrics records numeric metrics. Re-logging a key overwrites it.
	LogMetrics(ctx context.Context, runID string, metrics map[string]float64) error

	// LogArtifact records a file against the run. Missing files are skipped.
	LogArtifact(ctx context.Context, runID, path string) error

	// FinishRun marks the run completed, or failed when errMsg is set.
	FinishRun(ctx context.Context, runID, errMsg string) error

	// GetRun returns a run with its params, metrics and artifacts.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns lists runs newest first.
	ListRuns(ctx context.Context, p ListParams) ([]model.Run, error)

	// RmRun soft-deletes (or hard-deletes) a run.
	RmRun(ctx context.Context, p RmParams) error

	// Close closes the store.
	Close() error
}
