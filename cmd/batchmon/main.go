package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/app"
	"github.com/ternarybob/batchmon/internal/common"
)

var (
	// Persistent flags
	configFiles []string
	logLevel    string
	concurrency int
	backend     string
	noBanner    bool

	// Resolved in PersistentPreRunE
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "batchmon",
	Short: "Batch job log monitor and scheduler",
	Long: `Batchmon checks the logs of registered batch jobs for a day, reports
each job as Success, Warnings, Errors or Unknown, and manages the host
scheduler task that runs each job.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "Jobs checked at once (overrides config)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Scheduler backend: auto, powershell or crontab (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "Do not print the startup banner")

	rootCmd.AddCommand(checkCmd, watchCmd, scheduleCmd, jobsCmd, versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration: defaults -> files -> env -> flags
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	if len(configFiles) == 0 {
		for _, candidate := range []string{"batchmon.toml", filepath.Join("config", "batchmon.toml")} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	common.ApplyFlagOverrides(config, logLevel, concurrency, backend)
	if err := config.Validate(); err != nil {
		return err
	}

	logger = common.InitLogger(config)
	common.InstallCrashHandler(common.CrashLogDir)

	if !noBanner && cmd.Name() == "watch" {
		common.PrintBanner(common.GetVersion())
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Str("badger_path", config.Storage.Badger.Path).
		Str("jobs_dir", config.Jobs.DefinitionsDir).
		Msg("Configuration loaded")
	return nil
}

// openApp builds the application from the resolved configuration
func openApp() (*app.App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}
	application, err := app.New(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
