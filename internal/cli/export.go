package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export runs as JSON",
		Long:  "Export every run of the experiment, oldest first, with params, metrics and artifacts.",
		Run:   runExport,
	}

	cmd.Flags().Bool("all-experiments", false, "Export every experiment")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	cfg := getConfig(cmd)
	all, _ := cmd.Flags().GetBool("all-experiments")

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	experiment := cfg.Tracking.Experiment
	if all {
		experiment = ""
	}
	runs, err := s.ExportAll(cmd.Context(), experiment)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(b))
}
