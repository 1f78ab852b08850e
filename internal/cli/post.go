package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"metric-oracle/internal/app"
)

var (
	postSender string
	postFile   string
	postKafka  bool
)

var postCmd = &cobra.Command{
	Use:   "post [metric-json]",
	Short: "Post one metric as the given sender",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readMetricArg(cmd, args)
		if err != nil {
			return err
		}

		metric, err := app.ParseMetric(raw)
		if err != nil {
			return err
		}

		return getApp().Post(cmd.Context(), app.PostOptions{
			Sender: postSender,
			Metric: metric,
			Kafka:  postKafka,
		})
	},
}

func readMetricArg(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1 && postFile != "":
		return "", errors.New("pass the metric either as an argument or with --file")
	case len(args) == 1:
		return args[0], nil
	case postFile == "-":
		raw, err := io.ReadAll(cmd.InOrStdin())
		return string(raw), err
	case postFile != "":
		raw, err := os.ReadFile(postFile)
		if err != nil {
			return "", fmt.Errorf("read metric file: %w", err)
		}
		return string(raw), nil
	default:
		return "", errors.New("metric JSON is required")
	}
}

func init() {
	postCmd.Flags().StringVar(&postSender, "sender", "", "Sender address (defaults to oracle.admin_address)")
	postCmd.Flags().StringVar(&postFile, "file", "", "Read the metric JSON from a file, or - for stdin")
	postCmd.Flags().BoolVar(&postKafka, "kafka", false, "Publish to the Kafka metrics topic instead of writing locally")
}
