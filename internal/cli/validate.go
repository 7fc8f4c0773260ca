package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/validate"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a payload against the record contract",
		Long:  "Print {\"ok\": ..., \"problems\": [...]} for a CSV or JSON payload. Exits 1 when problems are found.",
		Run:   runValidate,
	}

	cmd.Flags().StringP("input", "i", "-", "Input CSV or JSON file (- for stdin)")

	RootCmd.AddCommand(cmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	input, _ := cmd.Flags().GetString("input")

	records, err := loadRecords(input)
	if err != nil {
		exitErr("read input", err)
	}

	res := validate.Validate(records, validate.TelcoContract())
	if formatFlag == "text" {
		for _, p := range res.Problems {
			fmt.Println(p)
		}
	} else {
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(b))
	}
	if !res.OK {
		os.Exit(1)
	}
}
