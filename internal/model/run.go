package model

import "time"

// Run represents one tracked training run.
type Run struct {
	ID          string             `json:"id"`
	Experiment  string             `json:"experiment"`
	Name        string             `json:"name"`
	Status      string             `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	DeletedAt   *time.Time         `json:"deleted_at,omitempty"`
	Error       string             `json:"error,omitempty"`
	Params      map[string]string  `json:"params,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Artifacts   []Artifact         `json:"artifacts,omitempty"`
}

// Artifact is a file recorded against a run.
type Artifact struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	SHA256    string    `json:"sha256"`
	LoggedAt  time.Time `json:"logged_at"`
}

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ValidStatuses are the allowed run statuses.
var ValidStatuses = map[string]bool{
	RunRunning:   true,
	RunCompleted: true,
	RunFailed:    true,
}
