package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/statemon/internal/report"
	"github.com/fakeyudi/statemon/internal/tracker"
)

var (
	observationsLimit int
	diffMaxChars      int
)

var observationsCmd = &cobra.Command{
	Use:   "observations",
	Short: "List the most recent observations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := observationsLimit
		if limit == 0 {
			limit = GetConfig().ObservationLimit
		}
		mon, err := newMonitor(nil)
		if err != nil {
			return err
		}
		obs, err := mon.RecentObservations(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(obs) == 0 {
			fmt.Fprintln(out, "no observations")
			return nil
		}
		for _, o := range obs {
			fmt.Fprintf(out, "[%s] (%s) %s\n", o.CreatedAt, o.Kind, o.Title)
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the active plan's status and checklist progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		mon, err := newMonitor(nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		p := mon.ActivePlan()
		if p == nil {
			fmt.Fprintln(out, "no active plan")
			return nil
		}
		fmt.Fprintf(out, "File: %s\n", p.SourcePath)
		fmt.Fprintf(out, "Status: %s\n", p.Status)
		fmt.Fprintf(out, "Progress: %s\n", report.PlanFraction(p))
		return nil
	},
}

// A one-shot process starts a new session, so changes and diff report the
// baseline they captured; use watch for a long-lived session.
var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Capture the session baseline and list files changed since it",
	RunE: func(cmd *cobra.Command, args []string) error {
		mon, err := newMonitor(nil)
		if err != nil {
			return err
		}
		changes := mon.GitChanges(cmd.Context())

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Baseline: %d pre-existing change(s)\n", len(mon.Baseline()))
		if len(changes) == 0 {
			fmt.Fprintln(out, "no changes since session start")
			return nil
		}
		for _, p := range changes {
			fmt.Fprintln(out, p)
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Print the diff of files changed since the session baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxChars := diffMaxChars
		if maxChars == 0 {
			maxChars = GetConfig().MaxDiffChars
		}
		if maxChars < 0 {
			return fmt.Errorf("%w: %d", tracker.ErrInvalidMaxChars, maxChars)
		}
		mon, err := newMonitor(nil)
		if err != nil {
			return err
		}
		// Capture the baseline first so the diff covers this session only.
		mon.GitChanges(cmd.Context())
		d, err := mon.GitDiff(cmd.Context(), maxChars)
		if err != nil {
			return err
		}
		if d == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "no diff")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), d)
		return nil
	},
}

func init() {
	observationsCmd.Flags().IntVarP(&observationsLimit, "limit", "n", 0, "maximum number of observations (default from config)")
	diffCmd.Flags().IntVar(&diffMaxChars, "max-chars", 0, "truncate the diff after this many characters (default from config)")
	rootCmd.AddCommand(observationsCmd, planCmd, changesCmd, diffCmd)
}
