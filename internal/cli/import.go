package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"metric-oracle/internal/app"
)

var (
	importPath   string
	importSender string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replay a CSV of metrics through the oracle",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importPath == "" {
			return fmt.Errorf("--file must be provided")
		}

		summary, err := getApp().Import(cmd.Context(), app.ImportOptions{
			Path:   importPath,
			Sender: importSender,
			DryRun: importDryRun,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "applied: %d\nrejected: %d\n", summary.Applied, summary.Rejected)
		return err
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "CSV file with key,value,metric_type,update_time[,block_height,attributes]")
	importCmd.Flags().StringVar(&importSender, "sender", "", "Sender address (defaults to oracle.admin_address)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate against a scratch in-memory oracle without writing")
}
