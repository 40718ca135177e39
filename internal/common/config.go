package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Jobs        JobsConfig      `toml:"jobs"`
	Monitor     MonitorConfig   `toml:"monitor"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Report      ReportConfig    `toml:"report"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for log lines (default: "15:04:05")
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// JobsConfig contains configuration for job definition files
type JobsConfig struct {
	DefinitionsDir string `toml:"definitions_dir"` // Directory containing job files (TOML/YAML/JSON)
}

// MonitorConfig controls log analysis and the status pass
type MonitorConfig struct {
	Concurrency      int    `toml:"concurrency"`       // Jobs analyzed at once (default: 4)
	TailLines        int    `toml:"tail_lines"`        // Lines kept from the end of each log (default: 5000)
	WholeReadBytes   int64  `toml:"whole_read_bytes"`  // Files smaller than this are read in one go (default: 1 MiB)
	RecencyThreshold string `toml:"recency_threshold"` // Hourly log age that counts as stale (default: "2h")
	RefreshSchedule  string `toml:"refresh_schedule"`  // Watch mode cron, seconds field first (default: every 30s)
}

// SchedulerConfig selects and tunes the host task scheduler backend
type SchedulerConfig struct {
	Backend        string  `toml:"backend"`         // "auto", "powershell" or "crontab"
	VerifyDelay    string  `toml:"verify_delay"`    // Wait between a mutation and its verification query (default: "2s")
	QueryRate      float64 `toml:"query_rate"`      // Scheduler queries per second (default: 5)
	PowerShellPath string  `toml:"powershell_path"` // default: "powershell.exe"
	CrontabPath    string  `toml:"crontab_path"`    // default: "crontab"
}

// ReportConfig controls the status report written by the CLI
type ReportConfig struct {
	OutputDir string `toml:"output_dir"` // Empty writes to stdout
	Format    string `toml:"format"`     // "markdown" or "html"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Jobs: JobsConfig{
			DefinitionsDir: "./jobs",
		},
		Monitor: MonitorConfig{
			Concurrency:      4,
			TailLines:        5000,
			WholeReadBytes:   1024 * 1024,
			RecencyThreshold: "2h",
			RefreshSchedule:  "*/30 * * * * *",
		},
		Scheduler: SchedulerConfig{
			Backend:        "auto",
			VerifyDelay:    "2s",
			QueryRate:      5,
			PowerShellPath: "powershell.exe",
			CrontabPath:    "crontab",
		},
		Report: ReportConfig{
			Format: "markdown",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BATCHMON_ENV"); env != "" {
		config.Environment = env
	}

	// Logging
	if level := os.Getenv("BATCHMON_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("BATCHMON_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		config.Logging.Output = outputs
	}

	// Storage
	if badgerPath := os.Getenv("BATCHMON_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("BATCHMON_BADGER_RESET_ON_STARTUP"); reset != "" {
		if b, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = b
		}
	}

	// Jobs
	if dir := os.Getenv("BATCHMON_JOBS_DIR"); dir != "" {
		config.Jobs.DefinitionsDir = dir
	}

	// Monitor
	if concurrency := os.Getenv("BATCHMON_MONITOR_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Monitor.Concurrency = c
		}
	}
	if tail := os.Getenv("BATCHMON_MONITOR_TAIL_LINES"); tail != "" {
		if n, err := strconv.Atoi(tail); err == nil {
			config.Monitor.TailLines = n
		}
	}
	if threshold := os.Getenv("BATCHMON_MONITOR_RECENCY_THRESHOLD"); threshold != "" {
		config.Monitor.RecencyThreshold = threshold
	}
	if schedule := os.Getenv("BATCHMON_MONITOR_REFRESH_SCHEDULE"); schedule != "" {
		config.Monitor.RefreshSchedule = schedule
	}

	// Scheduler
	if backend := os.Getenv("BATCHMON_SCHEDULER_BACKEND"); backend != "" {
		config.Scheduler.Backend = backend
	}
	if delay := os.Getenv("BATCHMON_SCHEDULER_VERIFY_DELAY"); delay != "" {
		config.Scheduler.VerifyDelay = delay
	}
	if rate := os.Getenv("BATCHMON_SCHEDULER_QUERY_RATE"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Scheduler.QueryRate = r
		}
	}
	if ps := os.Getenv("BATCHMON_POWERSHELL_PATH"); ps != "" {
		config.Scheduler.PowerShellPath = ps
	}
	if crontab := os.Getenv("BATCHMON_CRONTAB_PATH"); crontab != "" {
		config.Scheduler.CrontabPath = crontab
	}

	// Report
	if dir := os.Getenv("BATCHMON_REPORT_DIR"); dir != "" {
		config.Report.OutputDir = dir
	}
	if format := os.Getenv("BATCHMON_REPORT_FORMAT"); format != "" {
		config.Report.Format = format
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, logLevel string, concurrency int, backend string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if concurrency > 0 {
		config.Monitor.Concurrency = concurrency
	}
	if backend != "" {
		config.Scheduler.Backend = backend
	}
}

// Validate checks values that would otherwise fail deep inside a service
func (c *Config) Validate() error {
	if c.Monitor.Concurrency < 1 {
		return fmt.Errorf("monitor.concurrency must be at least 1, got %d", c.Monitor.Concurrency)
	}
	if c.Monitor.TailLines < 1 {
		return fmt.Errorf("monitor.tail_lines must be at least 1, got %d", c.Monitor.TailLines)
	}
	if _, err := time.ParseDuration(c.Monitor.RecencyThreshold); err != nil {
		return fmt.Errorf("invalid monitor.recency_threshold: %w", err)
	}
	if err := ValidateRefreshSchedule(c.Monitor.RefreshSchedule); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.Scheduler.VerifyDelay); err != nil {
		return fmt.Errorf("invalid scheduler.verify_delay: %w", err)
	}
	switch strings.ToLower(c.Scheduler.Backend) {
	case "auto", "powershell", "crontab":
	default:
		return fmt.Errorf("unknown scheduler.backend %q (expected auto, powershell or crontab)", c.Scheduler.Backend)
	}
	if c.Storage.Badger.ResetOnStartup && c.IsProduction() {
		return fmt.Errorf("storage.badger.reset_on_startup is not allowed in production")
	}
	switch strings.ToLower(c.Report.Format) {
	case "markdown", "md", "html":
	default:
		return fmt.Errorf("unknown report.format %q (expected markdown or html)", c.Report.Format)
	}
	return nil
}

// ValidateRefreshSchedule validates a six-field (seconds first) cron expression
func ValidateRefreshSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid monitor.refresh_schedule %q: %w", schedule, err)
	}
	return nil
}

// RecencyThreshold returns the parsed stale-log threshold, defaulting to two hours
func (c *Config) RecencyThreshold() time.Duration {
	d, err := time.ParseDuration(c.Monitor.RecencyThreshold)
	if err != nil || d <= 0 {
		return 2 * time.Hour
	}
	return d
}

// VerifyDelay returns the parsed scheduler verification delay, defaulting to two seconds
func (c *Config) VerifyDelay() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.VerifyDelay)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
