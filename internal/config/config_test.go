package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("csv", "", "")
	fs.String("model-dir", "", "")
	fs.Float64("threshold", 0.5, "")
	fs.Bool("verbose", false, "")
	return fs
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTarget, cfg.Data.Target)
	assert.Equal(t, DefaultModelDir, cfg.Model.Dir)
	assert.Equal(t, 0.2, cfg.Train.TestSize)
	assert.Equal(t, 0.5, cfg.Train.Threshold)
	assert.Equal(t, int64(42), cfg.Train.Seed)
	assert.Equal(t, DefaultExperiment, cfg.Tracking.Experiment)
	assert.Equal(t, "5s", cfg.Serve.ShutdownTimeout.String())
	assert.Empty(t, cfg.FileUsed)
	assert.Equal(t, filepath.Join(DefaultModelDir, "feature_columns.txt"), cfg.SchemaPath())
	assert.Equal(t, filepath.Join(DefaultModelDir, "model.json"), cfg.ModelPath())
}

func TestLoad_Precedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeYAML(t, `
data:
  csv: from-file.csv
model:
  dir: file-models
train:
  threshold: 0.3
  epochs: 50
`)
	t.Setenv("CHURN_MODEL_DIR", "env-models")
	t.Setenv("CHURN_TRAIN_TEST_SIZE", "0.25")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--threshold", "0.25", "--verbose"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.FileUsed)
	assert.Equal(t, "from-file.csv", cfg.Data.CSV)
	assert.Equal(t, "env-models", cfg.Model.Dir)
	assert.Equal(t, 0.25, cfg.Train.TestSize)
	assert.Equal(t, 0.25, cfg.Train.Threshold)
	assert.Equal(t, 50, cfg.Train.Epochs)
	assert.True(t, cfg.Log.Verbose)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeYAML(t, "train:\n  threshold: 0.3\n")

	fs := testFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Train.Threshold)
}

func TestLoad_FindsDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("data:\n  target: Exited\n"), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "Exited", cfg.Data.Target)
	assert.Equal(t, DefaultConfigFile, cfg.FileUsed)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"test size", "train:\n  test_size: 1.5\n", "train.test_size"},
		{"threshold", "train:\n  threshold: -0.1\n", "train.threshold"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"target", "data:\n  target: \"\"\n", "data.target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tt.yaml), nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "nope.yaml")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "train.learning_rate", envKey("CHURN_TRAIN_LEARNING_RATE"))
	assert.Equal(t, "serve.addr", envKey("CHURN_SERVE_ADDR"))
}

func TestLogisticConfig(t *testing.T) {
	cfg := Config{Train: TrainConfig{Epochs: 10, LearningRate: 0.05, Seed: 7}}
	lc := cfg.LogisticConfig()
	assert.Equal(t, 10, lc.Epochs)
	assert.Equal(t, 0.05, lc.LearningRate)
	assert.Equal(t, int64(7), lc.Seed)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogConfig{Format: "json"})
	l.Debug("hidden")
	l.Info("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, GetLogger(ctx))
	assert.NotNil(t, GetLogger(context.Background()))
}
