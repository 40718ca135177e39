package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
)

// JobStorage keeps the monitored job registry, keyed by job name
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{db: db, logger: logger}
}

// SaveJob validates and upserts a job. CreatedAt survives updates.
func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	job.Normalize()
	if err := job.Validate(); err != nil {
		return err
	}

	now := time.Now()
	var existing models.Job
	err := s.db.Store().Get(job.Name, &existing)
	switch {
	case err == nil:
		job.CreatedAt = existing.CreatedAt
	case errors.Is(err, badgerhold.ErrNotFound):
		if job.CreatedAt.IsZero() {
			job.CreatedAt = now
		}
	default:
		return fmt.Errorf("failed to read job %q: %w", job.Name, err)
	}
	job.UpdatedAt = now

	if err := s.db.Store().Upsert(job.Name, job); err != nil {
		return fmt.Errorf("failed to save job %q: %w", job.Name, err)
	}
	s.logger.Debug().Str("job", job.Name).Msg("Job saved")
	return nil
}

// GetJob returns the job with name or ErrJobNotFound
func (s *JobStorage) GetJob(ctx context.Context, name string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(name, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrJobNotFound, name)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListJobs returns every job ordered by name
func (s *JobStorage) ListJobs(ctx context.Context) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Name").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// DeleteJob removes the job with name or returns ErrJobNotFound
func (s *JobStorage) DeleteJob(ctx context.Context, name string) error {
	if err := s.db.Store().Delete(name, models.Job{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", interfaces.ErrJobNotFound, name)
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	s.logger.Debug().Str("job", name).Msg("Job deleted")
	return nil
}

// CountJobs returns the number of registered jobs
func (s *JobStorage) CountJobs(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}
