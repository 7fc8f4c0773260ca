package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/tracking"
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect tracked training runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs (newest first)",
		Run:   runRunsList,
	}
	listCmd.Flags().String("status", "", "Filter by status: running, completed or failed")
	listCmd.Flags().IntP("limit", "l", 20, "Max results")
	listCmd.Flags().Bool("all-experiments", false, "Ignore --experiment")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run with its params, metrics and artifacts",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShow,
	}

	rmCmd := &cobra.Command{
		Use:   "rm <run-id>",
		Short: "Delete a run",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsRm,
	}
	rmCmd.Flags().Bool("hard", false, "Permanent delete (irreversible)")

	runsCmd.AddCommand(listCmd, showCmd, rmCmd)
	RootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) {
	cfg := getConfig(cmd)
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all-experiments")

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p := tracking.ListParams{Status: status, Limit: limit}
	if !all {
		p.Experiment = cfg.Tracking.Experiment
	}
	runs, err := s.ListRuns(cmd.Context(), p)
	if err != nil {
		exitErr("list", err)
	}

	if formatFlag == "text" {
		for _, r := range runs {
			fmt.Printf("%s\t%s\t%s\t%s\n", r.ID, r.Experiment, r.Status, r.StartedAt.Format(time.RFC3339))
		}
		return
	}
	b, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(b))
}

func runRunsShow(cmd *cobra.Command, args []string) {
	s, err := openStore(getConfig(cmd))
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	run, err := s.GetRun(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}
	b, _ := json.MarshalIndent(run, "", "  ")
	fmt.Println(string(b))
}

func runRunsRm(cmd *cobra.Command, args []string) {
	hard, _ := cmd.Flags().GetBool("hard")

	s, err := openStore(getConfig(cmd))
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.RmRun(cmd.Context(), tracking.RmParams{ID: args[0], Hard: hard}); err != nil {
		exitErr("rm", err)
	}

	action := "deleted"
	if hard {
		action = "permanently deleted"
	}
	fmt.Printf("%s %s\n", action, args[0])
}
