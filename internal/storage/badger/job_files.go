package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
)

// jobRecord is the on-disk form of a job: configuration fields only
type jobRecord struct {
	Name              string `json:"name" toml:"name" yaml:"name"`
	LogFilePath       string `json:"log_file_path,omitempty" toml:"log_file_path,omitempty" yaml:"log_file_path,omitempty"`
	ErrorLogFilePath  string `json:"error_log_file_path,omitempty" toml:"error_log_file_path,omitempty" yaml:"error_log_file_path,omitempty"`
	CustomLogFilePath string `json:"custom_log_file_path,omitempty" toml:"custom_log_file_path,omitempty" yaml:"custom_log_file_path,omitempty"`
	ConfigFilePath    string `json:"config_file_path,omitempty" toml:"config_file_path,omitempty" yaml:"config_file_path,omitempty"`
	ExecutablePath    string `json:"executable_path,omitempty" toml:"executable_path,omitempty" yaml:"executable_path,omitempty"`
	BatchKind         string `json:"batch_kind,omitempty" toml:"batch_kind,omitempty" yaml:"batch_kind,omitempty"`
}

// jobFile holds one or more jobs under a [[jobs]] table / jobs: list
type jobFile struct {
	Jobs []jobRecord `json:"jobs" toml:"jobs" yaml:"jobs"`
}

func recordFromJob(job *models.Job) jobRecord {
	c := job.ConfigOnly()
	return jobRecord{
		Name:              c.Name,
		LogFilePath:       c.LogFilePath,
		ErrorLogFilePath:  c.ErrorLogFilePath,
		CustomLogFilePath: c.CustomLogFilePath,
		ConfigFilePath:    c.ConfigFilePath,
		ExecutablePath:    c.ExecutablePath,
		BatchKind:         string(c.BatchKind),
	}
}

func (r jobRecord) toJob() (*models.Job, error) {
	kind, err := models.ParseBatchKind(r.BatchKind)
	if err != nil {
		return nil, err
	}
	return &models.Job{
		Name:              r.Name,
		LogFilePath:       r.LogFilePath,
		ErrorLogFilePath:  r.ErrorLogFilePath,
		CustomLogFilePath: r.CustomLogFilePath,
		ConfigFilePath:    r.ConfigFilePath,
		ExecutablePath:    r.ExecutablePath,
		BatchKind:         kind,
	}, nil
}

// UnmarshalJSON reads snake_case records and the PascalCase list saved by the
// desktop monitor, where BatchType is the enum number (0 fixed time, 1 hourly).
// Key matching ignores case and underscores; unknown keys such as Status or
// LastRun are skipped.
func (r *jobRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	for key, raw := range fields {
		var target *string
		switch strings.ToLower(strings.ReplaceAll(key, "_", "")) {
		case "name":
			target = &r.Name
		case "logfilepath":
			target = &r.LogFilePath
		case "errorlogfilepath":
			target = &r.ErrorLogFilePath
		case "customlogfilepath":
			target = &r.CustomLogFilePath
		case "configfilepath":
			target = &r.ConfigFilePath
		case "executablepath":
			target = &r.ExecutablePath
		case "batchkind", "batchtype":
			kind, err := decodeBatchKind(raw)
			if err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			r.BatchKind = kind
			continue
		default:
			continue
		}
		if string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

// decodeBatchKind accepts a kind name or the desktop monitor's enum number
func decodeBatchKind(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name, nil
	}
	var number int
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", fmt.Errorf("batch kind must be a name or a number, got %s", raw)
	}
	return strconv.Itoa(number), nil
}

// legacyJobRecord is one entry of the desktop monitor's JSON job list
type legacyJobRecord struct {
	Name              string `json:"Name"`
	LogFilePath       string `json:"LogFilePath"`
	ErrorLogFilePath  string `json:"ErrorLogFilePath"`
	CustomLogFilePath string `json:"CustomLogFilePath"`
	ConfigFilePath    string `json:"ConfigFilePath"`
	ExecutablePath    string `json:"ExecutablePath"`
	BatchType         int    `json:"BatchType"`
}

func legacyFromJob(job *models.Job) legacyJobRecord {
	c := job.ConfigOnly()
	batchType := 0
	if c.IsHourly() {
		batchType = 1
	}
	return legacyJobRecord{
		Name:              c.Name,
		LogFilePath:       c.LogFilePath,
		ErrorLogFilePath:  c.ErrorLogFilePath,
		CustomLogFilePath: c.CustomLogFilePath,
		ConfigFilePath:    c.ConfigFilePath,
		ExecutablePath:    c.ExecutablePath,
		BatchType:         batchType,
	}
}

// FormatForExt maps a file extension to a job file format, "" when unsupported
func FormatForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}

// ParseJobFile decodes job records in format. A file may hold a jobs list
// or a single job at the top level; JSON also accepts a bare array.
func ParseJobFile(data []byte, format string) ([]*models.Job, error) {
	var (
		file   jobFile
		single jobRecord
	)

	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if len(file.Jobs) == 0 {
			if err := toml.Unmarshal(data, &single); err != nil {
				return nil, fmt.Errorf("failed to parse TOML: %w", err)
			}
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if len(file.Jobs) == 0 {
			if err := yaml.Unmarshal(data, &single); err != nil {
				return nil, fmt.Errorf("failed to parse YAML: %w", err)
			}
		}
	case "json":
		trimmed := bytes.TrimSpace(data)
		switch {
		case bytes.HasPrefix(trimmed, []byte("[")):
			if err := json.Unmarshal(trimmed, &file.Jobs); err != nil {
				return nil, fmt.Errorf("failed to parse JSON: %w", err)
			}
		default:
			if err := json.Unmarshal(trimmed, &file); err != nil {
				return nil, fmt.Errorf("failed to parse JSON: %w", err)
			}
			if len(file.Jobs) == 0 {
				if err := json.Unmarshal(trimmed, &single); err != nil {
					return nil, fmt.Errorf("failed to parse JSON: %w", err)
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported job file format %q", format)
	}

	records := file.Jobs
	if len(records) == 0 && single.Name != "" {
		records = []jobRecord{single}
	}

	jobs := make([]*models.Job, 0, len(records))
	for _, r := range records {
		job, err := r.toJob()
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", r.Name, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// LoadJobsFromFiles upserts every job found in .toml, .yaml, .yml and .json
// files in dir. Bad files and invalid jobs are logged and skipped. Returns
// the number of jobs saved.
func LoadJobsFromFiles(ctx context.Context, storage interfaces.JobStorage, dir string, logger arbor.ILogger) (int, error) {
	if dir == "" {
		return 0, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug().Str("dir", dir).Msg("Job definitions directory does not exist, skipping")
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read job definitions directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		format := FormatForExt(filepath.Ext(entry.Name()))
		if entry.IsDir() || format == "" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read job file")
			continue
		}

		jobs, err := ParseJobFile(data, format)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse job file")
			continue
		}

		for _, job := range jobs {
			if err := storage.SaveJob(ctx, job); err != nil {
				logger.Warn().Err(err).Str("file", entry.Name()).Str("job", job.Name).Msg("Failed to save job from file")
				continue
			}
			logger.Debug().Str("file", entry.Name()).Str("job", job.Name).Msg("Job loaded from file")
			loaded++
		}
	}

	if loaded > 0 {
		logger.Info().Int("count", loaded).Str("dir", dir).Msg("Jobs loaded from files")
	}
	return loaded, nil
}

// ExportJobs writes the registry as a job file in format (toml, yaml or
// json) holding configuration fields only. JSON is the desktop monitor's
// PascalCase list.
func ExportJobs(ctx context.Context, storage interfaces.JobStorage, w io.Writer, format string) error {
	jobs, err := storage.ListJobs(ctx)
	if err != nil {
		return err
	}

	file := jobFile{Jobs: make([]jobRecord, 0, len(jobs))}
	for _, job := range jobs {
		file.Jobs = append(file.Jobs, recordFromJob(job))
	}

	var data []byte
	switch strings.ToLower(format) {
	case "toml":
		data, err = toml.Marshal(file)
	case "yaml", "yml":
		data, err = yaml.Marshal(file)
	case "json":
		// Same shape the desktop monitor persists, so either tool can read it
		legacy := make([]legacyJobRecord, 0, len(jobs))
		for _, job := range jobs {
			legacy = append(legacy, legacyFromJob(job))
		}
		data, err = json.MarshalIndent(legacy, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode jobs: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write jobs: %w", err)
	}
	return nil
}
