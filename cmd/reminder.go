package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/logging"
	"github.com/joescharf/tt/internal/models"
	"github.com/joescharf/tt/internal/reminder"
	"github.com/joescharf/tt/internal/session"
)

var (
	reminderOwner string
	reminderStart string
)

var reminderCmd = &cobra.Command{
	Use:    "reminder",
	Short:  "Run the reminder loop for the active session",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), reminder.ShutdownSignals()...)
		defer stop()
		expect, err := launchedSession(reminderOwner, reminderStart)
		if err != nil {
			return err
		}
		return reminderRun(ctx, expect)
	},
}

func init() {
	reminderCmd.Flags().StringVar(&reminderOwner, reminder.FlagSessionOwner, "", "Owner of the session that launched this reminder")
	reminderCmd.Flags().StringVar(&reminderStart, reminder.FlagSessionStart, "", "Start time of the session that launched this reminder")
	rootCmd.AddCommand(reminderCmd)
}

// launchedSession rebuilds the identity passed by the launching start. An
// empty start means the reminder was run by hand and binds to any session.
func launchedSession(owner, start string) (*models.Session, error) {
	if start == "" {
		return nil, nil
	}
	t, err := session.ParseStartTime(start)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", reminder.FlagSessionStart, err)
	}
	return &models.Session{Owner: owner, StartTime: t}, nil
}

// reminderRun is the body of the detached reminder process. It binds to
// expect, or to the session active at launch when expect is nil, and exits
// when that session ends. A reminder whose session was already replaced
// exits without touching the PID file.
func reminderRun(ctx context.Context, expect *models.Session) error {
	cfg := loadAppConfig()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	log, closer, err := logging.OpenFile(filepath.Join(cfg.DataDir, reminderLogName), level)
	if err != nil {
		return err
	}
	defer closer.Close()

	store := session.NewFileStore(cfg.DataDir)
	bound := expect
	sess, err := store.Load(ctx)
	switch {
	case err == nil:
		if expect != nil && !expect.SameAs(sess) {
			log.Info().Str("start_time", sess.StartTime.Format(clock.SessionLayout)).
				Msg("session replaced before reminder started, exiting")
			return nil
		}
		bound = sess
	case errors.Is(err, session.ErrNotFound):
		log.Info().Msg("no active session, reminder exiting")
		return nil
	default:
		// Without an expected session, bind to the first readable check.
		log.Warn().Err(err).Msg("read session at launch")
	}

	pidFile := cfg.reminderPIDFile()
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("write reminder pid file: %w", err)
	}
	pid := os.Getpid()
	defer func() {
		if err := pidFile.RemoveIfOwned(pid); err != nil {
			log.Warn().Err(err).Msg("remove reminder pid file")
		}
	}()

	task := reminder.NewTask(cfg.Reminder, store, newNotifier(cfg), appClock, log, bound)
	return task.Run(ctx)
}
