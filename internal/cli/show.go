package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"metric-oracle/internal/app"
)

var (
	showKey   string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display latest metrics and prices, or one key's recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Key:   showKey,
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showKey, "key", "", "Show the recent history of this metric key")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of history entries to display")
}
