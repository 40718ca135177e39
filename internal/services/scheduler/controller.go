package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
)

// DefaultVerifyDelay is the wait between a mutation and its verification query
const DefaultVerifyDelay = 2 * time.Second

// mutationPhase names a step of the apply -> wait -> re-query -> verify sequence
type mutationPhase string

const (
	phaseApply  mutationPhase = "apply"
	phaseWait   mutationPhase = "wait"
	phaseQuery  mutationPhase = "query"
	phaseVerify mutationPhase = "verify"
)

// VerificationError reports a mutation whose follow-up query did not show the expected state
type VerificationError struct {
	Operation string
	TaskName  string
	Backend   string
	Phase     mutationPhase
	Reason    string
	Err       error
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("%s of task %q could not be verified on %s scheduler (%s): %s", e.Operation, e.TaskName, e.Backend, e.Phase, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Controller wraps a TaskBackend with post-action verification.
// Mutations are never retried; queries are rate limited and swallow failures.
type Controller struct {
	backend     interfaces.TaskBackend
	logger      arbor.ILogger
	verifyDelay time.Duration
	limiter     *rate.Limiter
}

// NewController creates a schedule controller. queryRate is queries per second;
// zero or less disables the limit.
func NewController(backend interfaces.TaskBackend, logger arbor.ILogger, verifyDelay time.Duration, queryRate float64) *Controller {
	if verifyDelay < 0 {
		verifyDelay = DefaultVerifyDelay
	}
	limit := rate.Inf
	if queryRate > 0 {
		limit = rate.Limit(queryRate)
	}
	return &Controller{
		backend:     backend,
		logger:      logger,
		verifyDelay: verifyDelay,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// Backend returns the name of the host scheduler in use
func (c *Controller) Backend() string {
	return c.backend.Name()
}

// Schedule registers (or replaces) the recurring task for a job and verifies it exists
func (c *Controller) Schedule(ctx context.Context, name, executablePath string, startTime time.Time, kind models.BatchKind) error {
	def, err := BuildDefinition(name, executablePath, startTime, kind)
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", name, err)
	}

	err = c.mutate(ctx, "schedule", name,
		func(ctx context.Context) error { return c.backend.Apply(ctx, def) },
		func(state *models.TaskState) string {
			if !state.Exists {
				return "task was not registered; make sure the process can run with administrator privileges"
			}
			return ""
		})
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("task", name).
		Str("trigger", string(def.Trigger)).
		Str("start", clock(startTime)).
		Str("backend", c.backend.Name()).
		Msg("Task scheduled")
	return nil
}

// UpdateSchedule moves an existing task to a new start time
func (c *Controller) UpdateSchedule(ctx context.Context, name string, newStartTime time.Time) error {
	state, err := c.query(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to update schedule for %q: %w", name, err)
	}
	if !state.Exists {
		return fmt.Errorf("failed to update schedule for %q: %w", name, interfaces.ErrTaskNotFound)
	}
	if state.Definition == nil {
		return fmt.Errorf("failed to update schedule for %q: existing definition could not be read back", name)
	}

	def := *state.Definition
	def.Name = name
	def.StartTime = newStartTime

	err = c.mutate(ctx, "update", name,
		func(ctx context.Context) error { return c.backend.Apply(ctx, &def) },
		func(state *models.TaskState) string {
			if !state.Exists {
				return "task disappeared after update"
			}
			return ""
		})
	if err != nil {
		return err
	}

	c.logger.Info().Str("task", name).Str("start", clock(newStartTime)).Msg("Task schedule updated")
	return nil
}

// DeleteSchedule unregisters a task and verifies it is gone
func (c *Controller) DeleteSchedule(ctx context.Context, name string) error {
	err := c.mutate(ctx, "delete", name,
		func(ctx context.Context) error { return c.backend.Remove(ctx, name) },
		func(state *models.TaskState) string {
			if state.Exists {
				return "task is still registered"
			}
			return ""
		})
	if err != nil {
		return err
	}

	c.logger.Info().Str("task", name).Msg("Task schedule deleted")
	return nil
}

// IsScheduled reports whether the task exists and is Ready. Failures read as false.
func (c *Controller) IsScheduled(ctx context.Context, name string) bool {
	state, err := c.query(ctx, name)
	if err != nil {
		c.logger.Debug().Err(err).Str("task", name).Msg("IsScheduled query failed")
		return false
	}
	return state.IsReady()
}

// GetNextRunTime returns the task's next run, or nil when unknown or missing
func (c *Controller) GetNextRunTime(ctx context.Context, name string) *time.Time {
	state, err := c.query(ctx, name)
	if err != nil {
		c.logger.Debug().Err(err).Str("task", name).Msg("GetNextRunTime query failed")
		return nil
	}
	if !state.Exists {
		return nil
	}
	return state.NextRun
}

// Info answers IsScheduled and GetNextRunTime from a single query
func (c *Controller) Info(ctx context.Context, name string) models.ScheduleInfo {
	state, err := c.query(ctx, name)
	if err != nil {
		c.logger.Debug().Err(err).Str("task", name).Msg("Schedule info query failed")
		return models.ScheduleInfo{}
	}
	info := models.ScheduleInfo{IsScheduled: state.IsReady()}
	if state.Exists {
		info.NextRun = state.NextRun
	}
	return info
}

func (c *Controller) query(ctx context.Context, name string) (*models.TaskState, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	state, err := c.backend.Query(ctx, name)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &models.TaskState{Name: name}, nil
	}
	return state, nil
}

// mutate runs apply, waits the verify delay, re-queries and checks the result.
// check returns a non-empty reason when the state is wrong.
func (c *Controller) mutate(ctx context.Context, operation, name string, apply func(context.Context) error, check func(*models.TaskState) string) error {
	fail := func(phase mutationPhase, reason string, err error) error {
		verr := &VerificationError{
			Operation: operation,
			TaskName:  name,
			Backend:   c.backend.Name(),
			Phase:     phase,
			Reason:    reason,
			Err:       err,
		}
		c.logger.Warn().Err(verr).Str("task", name).Str("operation", operation).Msg("Scheduler mutation failed")
		return verr
	}

	if err := apply(ctx); err != nil {
		return fail(phaseApply, "scheduler command failed", err)
	}

	if c.verifyDelay > 0 {
		timer := time.NewTimer(c.verifyDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fail(phaseWait, "cancelled before verification", ctx.Err())
		}
	}

	state, err := c.query(ctx, name)
	if err != nil {
		return fail(phaseQuery, "verification query failed", err)
	}
	if reason := check(state); reason != "" {
		return fail(phaseVerify, reason, nil)
	}
	return nil
}
