package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/classifier"
	"github.com/rcliao/churn-features/internal/config"
	"github.com/rcliao/churn-features/internal/pipeline"
	"github.com/rcliao/churn-features/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: "Serve /health, /predict, /schema and /metrics. Set CHURN_SCORER_URL to score " +
			"through a remote model server instead of the local model.json.",
		Run: runServe,
	}

	cmd.Flags().String("addr", config.DefaultAddr, "Listen address")
	cmd.Flags().Bool("watch", false, "Reload feature_columns.txt and model.json when they change")
	cmd.Flags().StringP("target", "t", config.DefaultTarget, "Target column ignored in payloads")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := getConfig(cmd)
	logger := config.GetLogger(cmd.Context())

	remote := classifier.NewScorerFromEnv()
	if remote != nil {
		logger.Info("using remote scorer")
	}
	predictor, holder, err := pipeline.OpenPredictor(pipeline.ServingOptions{
		SchemaPath: cfg.SchemaPath(),
		ModelPath:  cfg.ModelPath(),
		Remote:     remote,
		Target:     cfg.Data.Target,
		Logger:     logger,
	})
	if err != nil {
		exitErr("load model", err)
	}

	srv := server.NewServer(server.Config{
		Predictor:       predictor,
		Schemas:         holder,
		Addr:            cfg.Serve.Addr,
		Watch:           cfg.Serve.Watch,
		ShutdownTimeout: cfg.Serve.ShutdownTimeout,
		Logger:          logger,
	})
	if err := srv.Serve(cmd.Context()); err != nil {
		exitErr("serve", err)
	}
}
