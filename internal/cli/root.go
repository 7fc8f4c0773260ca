// Package cli implements the churn-features CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/config"
	"github.com/rcliao/churn-features/internal/tracking"
)

var (
	cfgFile    string
	formatFlag string
)

type configKey struct{}

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "churn-features",
	Short: "Telco churn feature engine, trainer and scoring server",
	Long: "Encodes raw customer records into the fixed feature schema a churn model was trained on. " +
		"Trains, tracks and serves the model from a single binary.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger := config.NewLogger(os.Stderr, cfg.Log)
		if cfg.FileUsed != "" {
			logger.Debug("config loaded", "file", cfg.FileUsed)
		}
		ctx := config.WithLogger(cmd.Context(), logger)
		cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))
		return nil
	},
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./churn.yaml if present)")
	pf.StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	pf.String("model-dir", config.DefaultModelDir, "Directory holding model.json and feature_columns.txt")
	pf.StringP("db", "d", "", "Tracking database path (default: $CHURN_TRACKING_DB or ~/.churn-features/tracking.db)")
	pf.String("experiment", config.DefaultExperiment, "Experiment name")
	pf.String("log-format", config.DefaultLogFormat, "Log format: text or json")
	pf.BoolP("verbose", "v", false, "Debug logging")
}

// getConfig returns the config loaded for this invocation.
func getConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	exitErr("config", fmt.Errorf("not loaded"))
	return nil
}

func openStore(cfg *config.Config) (*tracking.SQLiteStore, error) {
	return tracking.NewSQLiteStore(cfg.Tracking.DB)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// readInput opens path, or stdin for "-".
func readInput(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return f, nil
}
