package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/statemon/internal/metrics"
	"github.com/fakeyudi/statemon/internal/report"
)

var (
	snapshotFormat      string
	snapshotOutput      string
	snapshotMetricsFile string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the current project state as Markdown, JSON or TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := snapshotFormat
		if format == "" {
			format = GetConfig().DefaultFormat
		}
		renderer, err := report.NewRenderer(format)
		if err != nil {
			return err
		}

		var m *metrics.Metrics
		if snapshotMetricsFile != "" {
			m = metrics.New()
		}
		mon, err := newMonitor(m)
		if err != nil {
			return err
		}

		snap := mon.CurrentState(cmd.Context())
		data, err := renderer.Render(&snap)
		if err != nil {
			return fmt.Errorf("rendering snapshot: %w", err)
		}

		if snapshotOutput != "" {
			if err := os.WriteFile(snapshotOutput, data, 0o644); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Snapshot written to %s\n", snapshotOutput)
		} else if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}

		if m != nil {
			if err := m.WriteTextfile(snapshotMetricsFile); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotFormat, "format", "", "output format: markdown, json or toml (default from config)")
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "write the snapshot to a file instead of stdout")
	snapshotCmd.Flags().StringVar(&snapshotMetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	rootCmd.AddCommand(snapshotCmd)
}
