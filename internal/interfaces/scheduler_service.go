package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/batchmon/internal/models"
)

// ErrTaskNotFound is returned when the host scheduler has no task with the given name
var ErrTaskNotFound = errors.New("scheduled task not found")

// TaskBackend is the command protocol against one host task scheduler.
// Apply registers or replaces a task; Query never returns ErrTaskNotFound,
// it reports a missing task as TaskState{Exists: false}.
type TaskBackend interface {
	Name() string
	Apply(ctx context.Context, def *models.TaskDefinition) error
	Query(ctx context.Context, name string) (*models.TaskState, error)
	Remove(ctx context.Context, name string) error
}

// ScheduleController manages a job's recurring trigger with post-action verification
type ScheduleController interface {
	Schedule(ctx context.Context, name, executablePath string, startTime time.Time, kind models.BatchKind) error
	UpdateSchedule(ctx context.Context, name string, newStartTime time.Time) error
	DeleteSchedule(ctx context.Context, name string) error

	// Queries swallow failures: a missing or unreadable task is "not scheduled" / no next run
	IsScheduled(ctx context.Context, name string) bool
	GetNextRunTime(ctx context.Context, name string) *time.Time
	Info(ctx context.Context, name string) models.ScheduleInfo
}

// RefreshService re-runs the status pass on a cron schedule
type RefreshService interface {
	Start(cronExpr string) error
	Stop() error
	TriggerNow() error
	IsRunning() bool
	LastRun() *time.Time
}

// JobScheduler schedules registry jobs, resolving their executable first
type JobScheduler interface {
	ScheduleJob(ctx context.Context, job *models.Job, start time.Time) (models.ScheduleInfo, error)
	UnscheduleJob(ctx context.Context, job *models.Job) error
}
