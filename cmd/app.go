package cmd

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/daemon"
	"github.com/joescharf/tt/internal/notify"
	"github.com/joescharf/tt/internal/reminder"
	"github.com/joescharf/tt/internal/session"
	"github.com/joescharf/tt/internal/timelog"
	"github.com/joescharf/tt/internal/tracker"
)

const (
	defaultDataDirName = ".time_tracker"
	lockFileName       = "tracker.lock"
	reminderPIDName    = "reminder.pid"
	reminderLogName    = "reminder.log"
)

// Replaceable in tests.
var (
	appClock    clock.Clock = clock.System{}
	newNotifier             = defaultNotifier
	newLauncher             = defaultLauncher
)

// appConfig is the effective configuration, read once per command.
type appConfig struct {
	DataDir       string
	Backend       string
	CSVPath       string
	DBPath        string
	Owner         string
	NotifyEnabled bool
	Reminder      reminder.Config
}

func loadAppConfig() appConfig {
	dataDir := viper.GetString("data_dir")
	cfg := appConfig{
		DataDir:       dataDir,
		Backend:       strings.ToLower(viper.GetString("log.backend")),
		CSVPath:       viper.GetString("log.csv_path"),
		DBPath:        viper.GetString("log.db_path"),
		Owner:         resolveOwner(viper.GetString("owner")),
		NotifyEnabled: viper.GetBool("notify.enabled"),
		Reminder: reminder.Config{
			Interval: durationValue("reminder.interval", reminder.DefaultInterval),
			Poll:     durationValue("reminder.poll", reminder.DefaultPoll),
		},
	}
	if cfg.CSVPath == "" {
		cfg.CSVPath = filepath.Join(dataDir, timelog.CSVFileName)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dataDir, timelog.SQLiteFileName)
	}
	return cfg
}

func (c appConfig) reminderPIDFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(c.DataDir, reminderPIDName))
}

// resolveOwner picks the configured owner, then the OS account, then the
// environment, then "unknown".
func resolveOwner(configured string) string {
	if o := strings.TrimSpace(configured); o != "" {
		return o
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}

func defaultNotifier(cfg appConfig) notify.Notifier {
	return notify.New(cfg.NotifyEnabled, ui.Out)
}

// defaultLauncher re-executes this binary as a detached `tt reminder`.
func defaultLauncher(cfg appConfig) reminder.Launcher {
	args := []string{"reminder"}
	if f := viper.ConfigFileUsed(); f != "" {
		args = append(args, "--config", f)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	return &reminder.Detached{
		Args: args,
		Env:  []string{"TT_DATA_DIR=" + cfg.DataDir},
	}
}

// app bundles the collaborators a command needs.
type app struct {
	cfg      appConfig
	store    *session.FileStore
	log      timelog.Log
	notifier notify.Notifier
	ctrl     *tracker.Controller
}

// openApp wires the controller. With foreground set the reminder runs
// inside this process instead of a detached child.
func openApp(ctx context.Context, foreground bool) (*app, error) {
	cfg := loadAppConfig()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	l, err := timelog.Open(ctx, timelog.Config{
		Backend: cfg.Backend,
		CSVPath: cfg.CSVPath,
		DBPath:  cfg.DBPath,
	})
	if err != nil {
		return nil, fmt.Errorf("open time log: %w", err)
	}

	a := &app{
		cfg:      cfg,
		store:    session.NewFileStore(cfg.DataDir),
		log:      l,
		notifier: newNotifier(cfg),
	}

	launcher := newLauncher(cfg)
	if foreground {
		launcher = &reminder.InProcess{
			Config:   cfg.Reminder,
			Store:    a.store,
			Notifier: a.notifier,
			Clock:    appClock,
			Log:      logger,
		}
	}

	a.ctrl = tracker.New(tracker.Config{Owner: cfg.Owner}, tracker.Deps{
		Store:    a.store,
		Log:      l,
		Notifier: a.notifier,
		Reminder: launcher,
		Lock:     daemon.NewLock(filepath.Join(cfg.DataDir, lockFileName)),
		Clock:    appClock,
		Logger:   logger,
	})
	ui.VerboseLog("Data directory: %s", cfg.DataDir)
	return a, nil
}

func (a *app) Close() {
	a.ctrl.Close()
	if err := a.log.Close(); err != nil {
		logger.Warn().Err(err).Msg("close time log")
	}
}
