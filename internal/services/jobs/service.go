// -----------------------------------------------------------------------
// Job Service - registry operations that keep the host scheduler in step
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
)

// ErrJobExists is returned when adding a job whose name is already registered
var ErrJobExists = errors.New("job already exists")

// Service provides high-level job registry operations
type Service struct {
	storage    interfaces.JobStorage
	scheduler  interfaces.JobScheduler
	controller interfaces.ScheduleController
	logger     arbor.ILogger
}

// NewService creates a new job service
func NewService(storage interfaces.JobStorage, scheduler interfaces.JobScheduler, controller interfaces.ScheduleController, logger arbor.ILogger) *Service {
	return &Service{
		storage:    storage,
		scheduler:  scheduler,
		controller: controller,
		logger:     logger,
	}
}

// Add registers a new job
func (s *Service) Add(ctx context.Context, job *models.Job) error {
	job.Normalize()
	if _, err := s.storage.GetJob(ctx, job.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrJobExists, job.Name)
	} else if !errors.Is(err, interfaces.ErrJobNotFound) {
		return err
	}

	if err := s.storage.SaveJob(ctx, job); err != nil {
		return err
	}
	s.logger.Info().Str("job", job.Name).Str("kind", string(job.BatchKind)).Msg("Job added")
	return nil
}

// Update replaces a registered job's configuration
func (s *Service) Update(ctx context.Context, job *models.Job) error {
	job.Normalize()
	if _, err := s.storage.GetJob(ctx, job.Name); err != nil {
		return err
	}
	return s.storage.SaveJob(ctx, job)
}

// Get returns the job with name
func (s *Service) Get(ctx context.Context, name string) (*models.Job, error) {
	return s.storage.GetJob(ctx, name)
}

// List returns every registered job ordered by name
func (s *Service) List(ctx context.Context) ([]*models.Job, error) {
	return s.storage.ListJobs(ctx)
}

// Remove deletes the job's scheduler task, if any, then the job. A task
// that cannot be deleted leaves the job registered.
func (s *Service) Remove(ctx context.Context, name string) error {
	job, err := s.storage.GetJob(ctx, name)
	if err != nil {
		return err
	}

	if err := s.scheduler.UnscheduleJob(ctx, job); err != nil {
		return fmt.Errorf("failed to delete scheduled task for %q: %w", name, err)
	}
	if err := s.storage.DeleteJob(ctx, name); err != nil {
		return err
	}
	s.logger.Info().Str("job", name).Msg("Job removed")
	return nil
}

// Schedule registers the job's task at start and stores the executable it used
func (s *Service) Schedule(ctx context.Context, name string, start time.Time) (models.ScheduleInfo, error) {
	job, err := s.storage.GetJob(ctx, name)
	if err != nil {
		return models.ScheduleInfo{}, err
	}

	previous := job.ExecutablePath
	info, err := s.scheduler.ScheduleJob(ctx, job, start)
	if err != nil {
		return models.ScheduleInfo{}, err
	}
	if job.ExecutablePath != previous {
		if err := s.storage.SaveJob(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job", name).Msg("Scheduled, but failed to store executable path")
		}
	}
	return info, nil
}

// Reschedule moves the start time of the job's existing task
func (s *Service) Reschedule(ctx context.Context, name string, start time.Time) (models.ScheduleInfo, error) {
	if _, err := s.storage.GetJob(ctx, name); err != nil {
		return models.ScheduleInfo{}, err
	}
	if err := s.controller.UpdateSchedule(ctx, name, start); err != nil {
		return models.ScheduleInfo{}, err
	}
	return s.controller.Info(ctx, name), nil
}

// Unschedule deletes the job's task
func (s *Service) Unschedule(ctx context.Context, name string) error {
	if _, err := s.storage.GetJob(ctx, name); err != nil {
		return err
	}
	return s.controller.DeleteSchedule(ctx, name)
}

// ScheduleStatus is the live scheduler view of the job
func (s *Service) ScheduleStatus(ctx context.Context, name string) models.ScheduleInfo {
	return s.controller.Info(ctx, name)
}
