package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/export"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/store"
)

var (
	exportOut    string
	exportAction string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export decided blocks to a spreadsheet",
	Long:  "Writes one row per decided block, including validation flags and reason codes, for the finance team to review.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		filter := store.ResultFilter{
			Action: model.PolicyAction(exportAction),
			Limit:  exportLimit,
		}
		results, err := env.Store.ListResults(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no results to export")
			return nil
		}

		if err := export.WriteDecisions(exportOut, results); err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", exportOut),
			zap.Int("rows", len(results)),
		)
		fmt.Printf("wrote %d row(s) to %s\n", len(results), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "decisions.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportAction, "action", "", "filter by decision (ACCEPT, QUARANTINE, REJECT)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum rows to export (0 = all)")
	rootCmd.AddCommand(exportCmd)
}
