package scheduler

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/batchmon/internal/models"
)

// BuildDefinition turns a job's scheduling request into a host-neutral task definition.
// FixedTime jobs get a daily trigger; Hourly jobs repeat every hour for one day from start.
func BuildDefinition(name, executablePath string, start time.Time, kind models.BatchKind) (*models.TaskDefinition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("task name is required")
	}
	if strings.TrimSpace(executablePath) == "" {
		return nil, fmt.Errorf("executable path is required for task %q", name)
	}

	def := &models.TaskDefinition{
		Name:      name,
		Action:    ActionFor(executablePath),
		Trigger:   models.TriggerDaily,
		StartTime: start,
	}
	if kind == models.BatchKindHourly {
		def.Trigger = models.TriggerHourly
		def.RepetitionEvery = time.Hour
		def.RepetitionLasting = 24 * time.Hour
	}
	return def, nil
}

// ActionFor picks how the scheduler launches path: scripts run through their
// interpreter, anything else is executed directly.
func ActionFor(path string) models.TaskAction {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ps1":
		return models.TaskAction{
			Execute:    "powershell.exe",
			Arguments:  fmt.Sprintf(`-ExecutionPolicy Bypass -File "%s"`, path),
			ScriptPath: path,
		}
	case ".sh":
		return models.TaskAction{
			Execute:    "/bin/sh",
			Arguments:  fmt.Sprintf(`"%s"`, path),
			ScriptPath: path,
		}
	default:
		return models.TaskAction{Execute: path}
	}
}

// clock renders the HH:mm start of a definition
func clock(t time.Time) string {
	return t.Format("15:04")
}
