package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// BatchKind describes how a job runs and how its log behaves
type BatchKind string

const (
	// BatchKindFixedTime runs once a day at a fixed time and overwrites its log
	BatchKindFixedTime BatchKind = "fixed_time"
	// BatchKindHourly runs every hour, appends to its log and is archived daily
	BatchKindHourly BatchKind = "hourly"
)

// ParseBatchKind accepts the stored form plus the desktop monitor's
// "FixedTime"/"Hourly" names and enum numbers "0"/"1"
func ParseBatchKind(value string) (BatchKind, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), "_", "")) {
	case "", "fixedtime", "fixed", "0":
		return BatchKindFixedTime, nil
	case "hourly", "1":
		return BatchKindHourly, nil
	default:
		return "", fmt.Errorf("unknown batch kind %q (expected fixed_time or hourly)", value)
	}
}

// Job is a monitored batch job. Name doubles as the host scheduler task name.
// Only configuration fields live here; analysis output is never persisted.
type Job struct {
	Name              string    `json:"name" toml:"name" yaml:"name" validate:"required,max=200,excludesall=/\\:*?<>"`
	LogFilePath       string    `json:"log_file_path" toml:"log_file_path" yaml:"log_file_path"`
	ErrorLogFilePath  string    `json:"error_log_file_path" toml:"error_log_file_path" yaml:"error_log_file_path"`
	CustomLogFilePath string    `json:"custom_log_file_path" toml:"custom_log_file_path" yaml:"custom_log_file_path"`
	ConfigFilePath    string    `json:"config_file_path" toml:"config_file_path" yaml:"config_file_path"`
	ExecutablePath    string    `json:"executable_path" toml:"executable_path" yaml:"executable_path"`
	BatchKind         BatchKind `json:"batch_kind" toml:"batch_kind" yaml:"batch_kind" validate:"omitempty,oneof=fixed_time hourly"`
	CreatedAt         time.Time `json:"created_at" toml:"-" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" toml:"-" yaml:"-"`
}

var jobValidator = validator.New()

// Validate checks the job record before it is stored
func (j *Job) Validate() error {
	if err := jobValidator.Struct(j); err != nil {
		return fmt.Errorf("invalid job %q: %w", j.Name, err)
	}
	return nil
}

// Normalize trims paths and fills in the default batch kind
func (j *Job) Normalize() {
	j.Name = strings.TrimSpace(j.Name)
	j.LogFilePath = strings.TrimSpace(j.LogFilePath)
	j.ErrorLogFilePath = strings.TrimSpace(j.ErrorLogFilePath)
	j.CustomLogFilePath = strings.TrimSpace(j.CustomLogFilePath)
	j.ConfigFilePath = strings.TrimSpace(j.ConfigFilePath)
	j.ExecutablePath = strings.TrimSpace(j.ExecutablePath)
	if kind, err := ParseBatchKind(string(j.BatchKind)); err == nil {
		j.BatchKind = kind
	}
}

// IsHourly reports whether the job uses the append-and-archive log model
func (j *Job) IsHourly() bool {
	return j.BatchKind == BatchKindHourly
}

// ConfigOnly returns a copy holding just the persisted configuration fields
func (j *Job) ConfigOnly() Job {
	return Job{
		Name:              j.Name,
		LogFilePath:       j.LogFilePath,
		ErrorLogFilePath:  j.ErrorLogFilePath,
		CustomLogFilePath: j.CustomLogFilePath,
		ConfigFilePath:    j.ConfigFilePath,
		ExecutablePath:    j.ExecutablePath,
		BatchKind:         j.BatchKind,
	}
}
