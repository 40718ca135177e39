package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/batchmon/internal/models"
)

// ErrJobNotFound is returned when a job name is not in the registry
var ErrJobNotFound = errors.New("job not found")

// JobStorage - interface for the monitored job registry
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, name string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]*models.Job, error)
	DeleteJob(ctx context.Context, name string) error
	CountJobs(ctx context.Context) (int, error)
}

// StorageManager - interface for managing the storage backend
type StorageManager interface {
	JobStorage() JobStorage
	// LoadJobsFromFiles upserts every job file in dirPath into the registry
	LoadJobsFromFiles(ctx context.Context, dirPath string) error
	Close() error
}
