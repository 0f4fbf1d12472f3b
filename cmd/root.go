package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tt/internal/logging"
	"github.com/joescharf/tt/internal/output"
	"github.com/joescharf/tt/internal/reminder"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui     *output.UI
	logger = zerolog.Nop()

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "tt",
	Short: "Time tracker - start, stop and report on work sessions",
	Long: `tt tracks one work session at a time.

Start a session with a description, stop it to append the interval to
the time log, and ask for a daily report of the logged hours. While a
session runs, a background reminder nudges you every few minutes.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tt/config.yaml)")
}

func initConfig() {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
		os.Exit(1)
	}

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".config", "tt"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	bindEnv()

	setDefaults(filepath.Join(home, defaultDataDirName))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// bindEnv maps TT_* variables onto config keys; nested keys use
// underscores, so TT_REMINDER_INTERVAL sets reminder.interval.
func bindEnv() {
	viper.SetEnvPrefix("TT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers every config key. Log paths default to empty and
// are resolved against data_dir at load time so TT_DATA_DIR moves them too.
func setDefaults(dataDir string) {
	viper.SetDefault("data_dir", dataDir)
	viper.SetDefault("log.backend", "csv")
	viper.SetDefault("log.csv_path", "")
	viper.SetDefault("log.db_path", "")
	viper.SetDefault("reminder.interval", reminder.DefaultInterval.String())
	viper.SetDefault("reminder.poll", reminder.DefaultPoll.String())
	viper.SetDefault("notify.enabled", true)
	viper.SetDefault("owner", "")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := logging.LevelWarn
	if verbose {
		level = logging.LevelDebug
	}
	logger = logging.Console(os.Stderr, level)
}

// durationValue reads a duration key, falling back to def when unset or invalid.
func durationValue(key string, def time.Duration) time.Duration {
	d := viper.GetDuration(key)
	if d <= 0 {
		logger.Debug().Str("key", key).Msg("using default duration")
		return def
	}
	return d
}
