package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/statemon/internal/monitor"
	"github.com/fakeyudi/statemon/internal/report"
	"github.com/fakeyudi/statemon/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "View a saved snapshot report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		snap, err := report.DetectParser(data).Parse(data)
		if err != nil {
			return err
		}

		if plainOutput {
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		}
		return tui.Run(snap, path)
	},
}

// printSnapshot writes a plain-text summary to w.
func printSnapshot(w io.Writer, s *monitor.Snapshot) {
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Project:   %s\n", s.ProjectRoot)
	fmt.Fprintf(w, "  Session:   %s\n", s.SessionID)
	fmt.Fprintf(w, "  Taken:     %s\n", s.TakenAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Observations")
	if len(s.Observations) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, o := range s.Observations {
			fmt.Fprintf(w, "  [%s] (%s) %s\n", o.CreatedAt, o.Kind, o.Title)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Plan")
	if s.Plan == nil {
		fmt.Fprintln(w, "  (none)")
	} else {
		fmt.Fprintf(w, "  %s  %s  %s\n", s.Plan.SourcePath, s.Plan.Status, report.PlanFraction(s.Plan))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Changes")
	if len(s.Changes) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, p := range s.Changes {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Diff")
	if s.Diff == "" {
		fmt.Fprintln(w, "  (none)")
	} else {
		fmt.Fprintln(w, indent(s.Diff, "  "))
	}
	fmt.Fprintln(w)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
