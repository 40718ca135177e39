package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
)

// NewBackend selects the host scheduler backend from config. "auto" picks
// PowerShell on Windows and crontab everywhere else.
func NewBackend(config common.SchedulerConfig, runner Runner, logger arbor.ILogger) (interfaces.TaskBackend, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Backend))
	if backend == "" || backend == "auto" {
		backend = "crontab"
		if runtime.GOOS == "windows" {
			backend = "powershell"
		}
	}

	switch backend {
	case "powershell":
		return NewPowerShellBackend(runner, logger, config.PowerShellPath), nil
	case "crontab":
		return NewCrontabBackend(runner, logger, config.CrontabPath), nil
	default:
		return nil, fmt.Errorf("unknown scheduler backend %q", config.Backend)
	}
}

// Service schedules jobs from the registry
type Service struct {
	controller interfaces.ScheduleController
	logger     arbor.ILogger
}

// NewService creates a job scheduling service on top of a controller
func NewService(controller interfaces.ScheduleController, logger arbor.ILogger) *Service {
	return &Service{controller: controller, logger: logger}
}

// ScheduleJob registers the job's task at start and reads back its schedule.
// A job without an executable path gets one from FindExecutable; the resolved
// path is written back to job so the caller can persist it.
func (s *Service) ScheduleJob(ctx context.Context, job *models.Job, start time.Time) (models.ScheduleInfo, error) {
	executable := job.ExecutablePath
	if executable == "" {
		executable = FindExecutable(job.LogFilePath)
	}
	if executable == "" {
		return models.ScheduleInfo{}, fmt.Errorf("cannot find executable file for job %q; set its executable path (e.g. StartServices.exe)", job.Name)
	}
	if !isFile(executable) {
		return models.ScheduleInfo{}, fmt.Errorf("executable file not found: %s", executable)
	}

	if err := s.controller.Schedule(ctx, job.Name, executable, start, job.BatchKind); err != nil {
		return models.ScheduleInfo{}, fmt.Errorf("failed to schedule job %q: %w", job.Name, err)
	}
	job.ExecutablePath = executable

	info := s.controller.Info(ctx, job.Name)
	if info.NextRun == nil {
		next := nextOccurrence(start, time.Now())
		info.NextRun = &next
	}
	s.logger.Info().Str("job", job.Name).Str("executable", executable).Bool("ready", info.IsScheduled).Msg("Job scheduled")
	return info, nil
}

// UnscheduleJob removes the job's task if one is registered
func (s *Service) UnscheduleJob(ctx context.Context, job *models.Job) error {
	if !s.controller.IsScheduled(ctx, job.Name) && s.controller.GetNextRunTime(ctx, job.Name) == nil {
		return nil
	}
	return s.controller.DeleteSchedule(ctx, job.Name)
}

// nextOccurrence is the first time at start's clock time that is not before now
func nextOccurrence(start, now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
