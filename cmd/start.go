package cmd

import (
	"context"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/output"
	"github.com/joescharf/tt/internal/reminder"
	"github.com/joescharf/tt/internal/tracker"
)

var startForeground bool

var startCmd = &cobra.Command{
	Use:   "start [description...]",
	Short: "Start tracking a work session",
	Long: `Start a new work session. Remaining arguments are joined into the
description; without one the session is labelled "Work session".

A background reminder process is launched and notifies you periodically
until the session is stopped. With --foreground the reminder runs in this
process instead, and start blocks until the session ends or it is
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startRun(cmd.Context(), strings.Join(args, " "), startForeground)
	},
}

func init() {
	startCmd.Flags().BoolVarP(&startForeground, "foreground", "f", false, "Run the reminder in this process and wait")
	rootCmd.AddCommand(startCmd)
}

func startRun(ctx context.Context, description string, foreground bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would start tracking: %s", description)
		return nil
	}

	a, err := openApp(ctx, foreground)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.Start(ctx, description)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case tracker.OutcomeAlreadyRunning:
		ui.Warning("Already tracking: %s (for %s)", res.Session.Description, output.Duration(res.Elapsed))
		ui.Info("Run 'tt stop' to end it first")
		return nil
	case tracker.OutcomeStarted:
		ui.Success("Started tracking: %s", output.Cyan(res.Session.Description))
		ui.Info("Start time: %s", res.Session.StartTime.Format(clock.DisplayLayout))
	}

	if !foreground {
		return nil
	}

	ui.Info("Reminding every %s. Run 'tt stop' or press Ctrl+C to detach.", a.cfg.Reminder.Interval)
	sigCtx, stop := signal.NotifyContext(ctx, reminder.ShutdownSignals()...)
	defer stop()
	_ = a.ctrl.Wait(sigCtx)

	status, err := a.ctrl.Status(context.Background())
	if err != nil {
		return err
	}
	if status.Outcome == tracker.OutcomeActive {
		ui.Info("Reminder stopped; the session is still active")
	}
	return nil
}
