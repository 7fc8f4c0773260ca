// Package config loads churn-features settings from defaults, an optional
// YAML file, CHURN_ environment variables and command-line flags.
package config

import (
	"path/filepath"
	"time"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/schema"
)

// Default values.
const (
	DefaultConfigFile = "churn.yaml"
	DefaultCSV        = "data/raw/WA_Fn-UseC_-Telco-Customer-Churn.csv"
	DefaultTarget     = "Churn"
	DefaultModelDir   = "artifacts/model"
	DefaultExperiment = "churn-ml"
	DefaultAddr       = ":8000"
	DefaultLogFormat  = "text"
)

// DataConfig locates the training dataset.
type DataConfig struct {
	CSV    string `koanf:"csv"`
	Target string `koanf:"target"`
}

// ModelConfig locates the model directory holding the artifact and schema.
type ModelConfig struct {
	Dir string `koanf:"dir"`
}

// TrainConfig holds training hyperparameters.
type TrainConfig struct {
	TestSize     float64 `koanf:"test_size"`
	Threshold    float64 `koanf:"threshold"`
	Epochs       int     `koanf:"epochs"`
	LearningRate float64 `koanf:"learning_rate"`
	Seed         int64   `koanf:"seed"`
}

// TrackingConfig locates the run tracking database.
type TrackingConfig struct {
	DB         string `koanf:"db"`
	Experiment string `koanf:"experiment"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr            string        `koanf:"addr"`
	Watch           bool          `koanf:"watch"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Format  string `koanf:"format"`
	Verbose bool   `koanf:"verbose"`
}

// Config holds all settings.
type Config struct {
	Data     DataConfig     `koanf:"data"`
	Model    ModelConfig    `koanf:"model"`
	Train    TrainConfig    `koanf:"train"`
	Tracking TrackingConfig `koanf:"tracking"`
	Serve    ServeConfig    `koanf:"serve"`
	Log      LogConfig      `koanf:"log"`

	// FileUsed is the config file that was read, if any.
	FileUsed string `koanf:"-"`
}

// SchemaPath returns the feature schema location inside the model directory.
func (c *Config) SchemaPath() string {
	return filepath.Join(c.Model.Dir, schema.FileName)
}

// ModelPath returns the model artifact location inside the model directory.
func (c *Config) ModelPath() string {
	return filepath.Join(c.Model.Dir, classifier.ArtifactName)
}

// LogisticConfig converts training settings into classifier settings.
func (c *Config) LogisticConfig() classifier.LogisticConfig {
	lc := classifier.DefaultLogisticConfig()
	if c.Train.Epochs > 0 {
		lc.Epochs = c.Train.Epochs
	}
	if c.Train.LearningRate > 0 {
		lc.LearningRate = c.Train.LearningRate
	}
	lc.Seed = c.Train.Seed
	return lc
}

func defaults() map[string]any {
	return map[string]any{
		"data.csv":               DefaultCSV,
		"data.target":            DefaultTarget,
		"model.dir":              DefaultModelDir,
		"train.test_size":        0.2,
		"train.threshold":        0.5,
		"train.epochs":           200,
		"train.learning_rate":    0.1,
		"train.seed":             42,
		"tracking.db":            defaultTrackingDB(),
		"tracking.experiment":    DefaultExperiment,
		"serve.addr":             DefaultAddr,
		"serve.watch":            false,
		"serve.shutdown_timeout": "5s",
		"log.format":             DefaultLogFormat,
		"log.verbose":            false,
	}
}
