package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/output"
	"github.com/joescharf/tt/internal/tracker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.Status(ctx)
	if err != nil {
		return err
	}

	if res.Outcome == tracker.OutcomeNotRunning {
		ui.Info("No active session")
		return nil
	}

	s := res.Session
	fmt.Fprintf(ui.Out, "%s %s\n", output.Green("Tracking:"), s.Description)
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Status", output.OutcomeColor(string(res.Outcome)))
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Started", s.StartTime.Format(clock.DisplayLayout))
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Elapsed", output.Duration(res.Elapsed))
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Owner", s.Owner)

	reminderState := output.Yellow("not running")
	if pid, ok := a.cfg.reminderPIDFile().IsRunning(); ok {
		reminderState = output.Green(fmt.Sprintf("running (pid %d)", pid))
	}
	fmt.Fprintf(ui.Out, "  %-10s %s\n", "Reminder", reminderState)
	return nil
}
