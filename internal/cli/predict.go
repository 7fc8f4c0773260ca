package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/config"
	"github.com/rcliao/churn-features/internal/dataset"
	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/pipeline"
	"github.com/rcliao/churn-features/internal/schema"
)

func init() {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score records offline",
		Long:  "Score a CSV file or a JSON payload ({\"instances\": [...]} or a bare array). Use -i - for stdin JSON.",
		Run:   runPredict,
	}

	cmd.Flags().StringP("input", "i", "", "Input CSV or JSON file (required)")
	cmd.Flags().Float64("threshold", 0.5, "Decision threshold for labels")
	cmd.Flags().StringP("target", "t", config.DefaultTarget, "Target column ignored in the input")

	cmd.MarkFlagRequired("input")

	RootCmd.AddCommand(cmd)
}

type predictOutput struct {
	Predictions []float64 `json:"predictions"`
	Labels      []int     `json:"labels"`
}

func loadRecords(path string) ([]model.Record, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := dataset.LoadCSV(path)
		if err != nil {
			return nil, err
		}
		return f.Rows, nil
	}
	in, err := readInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return dataset.DecodeRecords(in)
}

func runPredict(cmd *cobra.Command, args []string) {
	cfg := getConfig(cmd)
	logger := config.GetLogger(cmd.Context())
	input, _ := cmd.Flags().GetString("input")

	records, err := loadRecords(input)
	if err != nil {
		exitErr("read input", err)
	}

	s, err := schema.Load(cfg.SchemaPath())
	if err != nil {
		exitErr("load schema", err)
	}
	scorer := classifier.NewScorerFromEnv()
	if scorer == nil {
		m, err := classifier.LoadArtifact(cfg.ModelPath())
		if err != nil {
			exitErr("load model", err)
		}
		scorer = m
	}

	p, err := pipeline.NewPredictor(s, scorer, cfg.Data.Target, logger)
	if err != nil {
		exitErr("load model", err)
	}
	proba, err := p.Predict(cmd.Context(), records)
	var verr *pipeline.ValidationError
	if errors.As(err, &verr) {
		b, _ := json.MarshalIndent(verr.Result, "", "  ")
		fmt.Println(string(b))
		os.Exit(1)
	}
	if err != nil {
		exitErr("predict", err)
	}

	labels := classifier.Predict(proba, cfg.Train.Threshold)
	if formatFlag == "text" {
		for i, v := range proba {
			fmt.Printf("%d\t%.6f\t%d\n", i, v, labels[i])
		}
		return
	}
	b, _ := json.MarshalIndent(predictOutput{Predictions: proba, Labels: labels}, "", "  ")
	fmt.Println(string(b))
}
