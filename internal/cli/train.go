package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/config"
	"github.com/rcliao/churn-features/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a churn model and write its feature schema",
		Long: "Load the CSV, clean it, discover the feature schema, fit a logistic regression " +
			"and evaluate it on a held-out split. The run is recorded in the tracking database.",
		Run: runTrain,
	}

	cmd.Flags().String("csv", config.DefaultCSV, "Training CSV")
	cmd.Flags().StringP("target", "t", config.DefaultTarget, "Target column")
	cmd.Flags().Float64("test-size", 0.2, "Held-out share")
	cmd.Flags().Float64("threshold", 0.5, "Decision threshold for metrics")
	cmd.Flags().Int("epochs", 200, "Training epochs")
	cmd.Flags().Float64("learning-rate", 0.1, "Learning rate")
	cmd.Flags().Int64("seed", 42, "Random seed for split and shuffling")
	cmd.Flags().String("run-name", "", "Run name")
	cmd.Flags().Bool("no-track", false, "Do not record the run")

	RootCmd.AddCommand(cmd)
}

func runTrain(cmd *cobra.Command, args []string) {
	cfg := getConfig(cmd)
	logger := config.GetLogger(cmd.Context())
	runName, _ := cmd.Flags().GetString("run-name")
	noTrack, _ := cmd.Flags().GetBool("no-track")

	opts := pipeline.TrainOptions{
		CSV:        cfg.Data.CSV,
		Target:     cfg.Data.Target,
		ModelDir:   cfg.Model.Dir,
		TestSize:   cfg.Train.TestSize,
		Threshold:  cfg.Train.Threshold,
		Seed:       cfg.Train.Seed,
		Trainer:    classifier.LogisticTrainer{Config: cfg.LogisticConfig()},
		Experiment: cfg.Tracking.Experiment,
		RunName:    runName,
		Logger:     logger,
	}

	if !noTrack {
		s, err := openStore(cfg)
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		opts.Tracker = s
	}

	res, err := pipeline.Train(cmd.Context(), opts)
	if err != nil {
		exitErr("train", err)
	}

	if formatFlag == "text" {
		fmt.Fprintln(os.Stderr, res.Report)
		fmt.Printf("run %s: %d rows, %d features\n", res.RunID, res.Rows, len(res.Columns))
		fmt.Printf("schema: %s\nmodel:  %s\n", res.SchemaPath, res.ModelPath)
		return
	}
	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
