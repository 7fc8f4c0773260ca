package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/tracking"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show tracking database statistics",
		Long:  "Show run counts and, per experiment, the best recall on the churn class.",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := getConfig(cmd)
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), cfg.Tracking.DB)
	if err != nil {
		exitErr("stats", err)
	}

	if formatFlag == "text" {
		writeStatsText(os.Stdout, stats)
		return
	}
	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
}

// writeStatsText prints run totals, then one line per experiment with
// its best churn recall. A zero recall, including none logged, shows "-".
func writeStatsText(w io.Writer, st *tracking.Stats) {
	fmt.Fprintf(w, "runs\t%d active, %d failed, %d total\n", st.ActiveRuns, st.FailedRuns, st.TotalRuns)
	fmt.Fprintf(w, "artifacts\t%d\n", st.Artifacts)
	for _, e := range st.Experiments {
		recall := "-"
		if e.BestRecall > 0 {
			recall = fmt.Sprintf("%.4f", e.BestRecall)
		}
		fmt.Fprintf(w, "%s\t%d runs\tbest recall %s\tlast %s\n", e.Experiment, e.Runs, recall, e.LastRunAt)
	}
}
