package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/churn-features/internal/schema"
)

func init() {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the trained feature schema",
		Run:   runSchema,
	}

	RootCmd.AddCommand(cmd)
}

func runSchema(cmd *cobra.Command, args []string) {
	cfg := getConfig(cmd)

	s, err := schema.Load(cfg.SchemaPath())
	if err != nil {
		exitErr("schema", err)
	}

	if formatFlag == "text" {
		for _, c := range s.Columns() {
			fmt.Println(c)
		}
		return
	}
	b, _ := json.MarshalIndent(s.Columns(), "", "  ")
	fmt.Println(string(b))
}
