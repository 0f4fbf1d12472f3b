package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/tt/internal/output"
	"github.com/joescharf/tt/internal/tracker"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active session and log it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func stopRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would stop the active session and append it to the time log")
		return nil
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.Stop(ctx)
	if err != nil {
		return err
	}

	if res.Outcome == tracker.OutcomeNotRunning {
		ui.Warning("No active session")
		return nil
	}

	ui.Success("Stopped tracking: %s (%s)", output.Cyan(res.Session.Description), output.OutcomeColor(string(res.Outcome)))
	ui.Info("Duration: %s (%s hours)", output.Duration(res.Duration), output.HoursColor(res.Record.DurationHours))
	ui.Info("Logged to %s", res.LogLocation)
	return nil
}
