package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/statemon/internal/monitor"
	"github.com/fakeyudi/statemon/internal/report"
	"github.com/fakeyudi/statemon/internal/tui"
	"github.com/fakeyudi/statemon/internal/watch"
)

var (
	watchInterval time.Duration
	watchPlain    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the project state for this session, reporting changes as they happen",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval := watchInterval
		if interval == 0 {
			interval = watch.DefaultInterval
		}
		mon, err := newMonitor(nil)
		if err != nil {
			return err
		}

		// Interactive terminals get the live TUI unless --plain is set.
		if !watchPlain && term.IsTerminal(os.Stdout.Fd()) {
			return tui.RunLive(mon, interval, projectRoot)
		}

		out := cmd.OutOrStdout()
		loop, err := watch.New(watch.Options{
			Source:   mon,
			Interval: interval,
			Paths: []string{
				projectRoot,
				mon.PlansDir(),
				filepath.Dir(mon.DBPath()),
			},
			IgnoreFile: filepath.Join(projectRoot, ".gitignore"),
			OnChange:   func(s monitor.Snapshot) { printChange(out, s) },
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (session %s), Ctrl-C to stop\n", projectRoot, mon.SessionID())
		return loop.Run(ctx)
	},
}

// printChange writes a one-block summary of s.
func printChange(w io.Writer, s monitor.Snapshot) {
	fmt.Fprintf(w, "[%s] ", s.TakenAt.Format("15:04:05"))
	if s.Plan != nil {
		fmt.Fprintf(w, "plan %s %s", s.Plan.Status, report.PlanFraction(s.Plan))
	} else {
		fmt.Fprint(w, "no plan")
	}
	fmt.Fprintf(w, ", %d observation(s), %d changed file(s)\n", len(s.Observations), len(s.Changes))
	if len(s.Observations) > 0 {
		o := s.Observations[0]
		fmt.Fprintf(w, "  latest: (%s) %s\n", o.Kind, o.Title)
	}
	for _, p := range s.Changes {
		fmt.Fprintf(w, "  M %s\n", p)
	}
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (default 5s)")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "print changes as text instead of the TUI")
	rootCmd.AddCommand(watchCmd)
}
