package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
)

// ResultFunc receives each job's result as soon as it is merged.
// Calls are serialized; index is the job's position in the input.
type ResultFunc func(index int, result *models.AnalysisResult)

// Orchestrator checks many jobs concurrently through a shared gate
type Orchestrator struct {
	resolver  interfaces.StatusResolver
	schedules interfaces.ScheduleController
	gate      *Gate
	state     *Service
	logger    arbor.ILogger
}

// NewOrchestrator creates an orchestrator. schedules may be nil to skip
// schedule queries; state may be nil when nobody watches pass progress.
func NewOrchestrator(resolver interfaces.StatusResolver, schedules interfaces.ScheduleController, gate *Gate, state *Service, logger arbor.ILogger) *Orchestrator {
	if gate == nil {
		gate = NewGate(DefaultConcurrency)
	}
	return &Orchestrator{
		resolver:  resolver,
		schedules: schedules,
		gate:      gate,
		state:     state,
		logger:    logger,
	}
}

// Pass is one run over a set of jobs
type Pass struct {
	ID         string
	FilterDate time.Time

	mu        sync.Mutex
	results   []*models.AnalysisResult
	completed int
	onResult  ResultFunc
	done      chan struct{}
	logger    arbor.ILogger
}

// Done is closed once every job has a result
func (p *Pass) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pass completes or ctx is done
func (p *Pass) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the results merged so far, in input order. Jobs still
// pending are nil until Done is closed.
func (p *Pass) Results() []*models.AnalysisResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.AnalysisResult, len(p.results))
	copy(out, p.results)
	return out
}

// Completed is the number of jobs with a result
func (p *Pass) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

func (p *Pass) merge(index int, result *models.AnalysisResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[index] = result
	p.completed++
	if p.onResult != nil {
		p.notify(index, result)
	}
}

// notify calls onResult; a panic there is logged and does not stop the pass
func (p *Pass) notify(index int, result *models.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("pass_id", p.ID).
				Str("job", result.JobName).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic in result callback")
		}
	}()
	p.onResult(index, result)
}

// Run starts a pass over jobs and returns immediately. Each job is resolved
// and its schedule queried once it is admitted by the gate. A job that is
// never admitted because ctx ended still gets an Unknown result, so Done
// always closes.
func (o *Orchestrator) Run(ctx context.Context, jobs []*models.Job, filterDate time.Time, onResult ResultFunc) *Pass {
	pass := &Pass{
		ID:         uuid.New().String(),
		FilterDate: filterDate,
		results:    make([]*models.AnalysisResult, len(jobs)),
		onResult:   onResult,
		done:       make(chan struct{}),
		logger:     o.logger,
	}

	if o.state != nil {
		o.state.passStarted(pass.ID, filterDate, len(jobs))
	}
	o.logger.Info().
		Str("pass_id", pass.ID).
		Str("date", filterDate.Format(common.DateLayout)).
		Int("jobs", len(jobs)).
		Int("concurrency", o.gate.Size()).
		Msg("Status pass started")

	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		common.SafeGo(o.logger, "check:"+job.Name, func() {
			o.check(ctx, pass, i, job, &wg)
		})
	}

	go func() {
		wg.Wait()
		close(pass.done)
		if o.state != nil {
			o.state.passFinished(pass.ID)
		}
		o.logger.Info().Str("pass_id", pass.ID).Int("jobs", len(jobs)).Msg("Status pass completed")
	}()

	return pass
}

// RunAndWait runs a pass and returns its results once complete
func (o *Orchestrator) RunAndWait(ctx context.Context, jobs []*models.Job, filterDate time.Time) []*models.AnalysisResult {
	pass := o.Run(ctx, jobs, filterDate, nil)
	<-pass.Done()
	return pass.Results()
}

func (o *Orchestrator) check(ctx context.Context, pass *Pass, index int, job *models.Job, wg *sync.WaitGroup) {
	defer wg.Done()

	var result *models.AnalysisResult
	admitted := false

	// Runs on a resolver panic too, so the job still gets a result
	defer func() {
		if admitted {
			o.gate.Release()
		}
		if result == nil {
			result = models.NewAnalysisResult(job.Name)
			result.Status = models.StatusError
			result.StatusMessage = fmt.Sprintf("Error analyzing batch: check of %s did not finish", job.Name)
		}
		pass.merge(index, result)
		if o.state != nil {
			o.state.jobCompleted(pass.ID)
		}
	}()

	if err := o.gate.Acquire(ctx); err != nil {
		result = models.NewAnalysisResult(job.Name)
		result.StatusMessage = fmt.Sprintf("Check cancelled: %v", err)
		return
	}
	admitted = true

	resolved := o.resolver.Resolve(job, pass.FilterDate)
	if resolved == nil {
		resolved = models.NewAnalysisResult(job.Name)
	}
	if o.schedules != nil {
		resolved.Schedule = o.schedules.Info(ctx, job.Name)
	}
	result = resolved

	o.logger.Debug().
		Str("pass_id", pass.ID).
		Str("job", job.Name).
		Str("status", string(result.Status)).
		Msg("Job checked")
}
