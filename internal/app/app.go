package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
	"github.com/ternarybob/batchmon/internal/services/jobs"
	"github.com/ternarybob/batchmon/internal/services/loganalysis"
	"github.com/ternarybob/batchmon/internal/services/refresh"
	"github.com/ternarybob/batchmon/internal/services/report"
	"github.com/ternarybob/batchmon/internal/services/scheduler"
	"github.com/ternarybob/batchmon/internal/services/status"
	"github.com/ternarybob/batchmon/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Analysis
	Analyzer *loganalysis.Analyzer
	Resolver *loganalysis.Resolver

	// Host scheduler
	Backend          interfaces.TaskBackend
	Controller       *scheduler.Controller
	SchedulerService *scheduler.Service

	// Registry and status passes
	JobService    *jobs.Service
	Gate          *status.Gate
	StatusService *status.Service
	Orchestrator  *status.Orchestrator
	Refresh       interfaces.RefreshService
	Reports       *report.Builder

	runner scheduler.Runner
}

// Option customizes App construction
type Option func(*App)

// WithRunner replaces the command runner used by scheduler backends
func WithRunner(runner scheduler.Runner) Option {
	return func(a *App) { a.runner = runner }
}

// WithStorage uses an already open storage manager instead of opening Badger
func WithStorage(manager interfaces.StorageManager) Option {
	return func(a *App) { a.StorageManager = manager }
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		runner: scheduler.ExecRunner{},
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		_ = app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().
		Str("backend", app.Backend.Name()).
		Int("concurrency", app.Gate.Size()).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the job registry and loads job files
func (a *App) initDatabase() error {
	if a.StorageManager == nil {
		manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
		if err != nil {
			return fmt.Errorf("failed to create storage manager: %w", err)
		}
		a.StorageManager = manager
	}

	if err := a.StorageManager.LoadJobsFromFiles(context.Background(), a.Config.Jobs.DefinitionsDir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load jobs from files")
	}
	return nil
}

// initServices builds analysis, scheduling and status services in dependency order
func (a *App) initServices() error {
	monitor := a.Config.Monitor

	a.Analyzer = loganalysis.NewAnalyzer(a.Logger,
		loganalysis.WithTailLines(monitor.TailLines),
		loganalysis.WithWholeReadBytes(monitor.WholeReadBytes),
	)
	a.Resolver = loganalysis.NewResolver(a.Analyzer, a.Logger, a.Config.RecencyThreshold())

	backend, err := scheduler.NewBackend(a.Config.Scheduler, a.runner, a.Logger)
	if err != nil {
		return err
	}
	a.Backend = backend
	a.Controller = scheduler.NewController(backend, a.Logger, a.Config.VerifyDelay(), a.Config.Scheduler.QueryRate)
	a.SchedulerService = scheduler.NewService(a.Controller, a.Logger)

	a.JobService = jobs.NewService(a.StorageManager.JobStorage(), a.SchedulerService, a.Controller, a.Logger)

	a.Gate = status.NewGate(monitor.Concurrency)
	a.StatusService = status.NewService(a.Logger)
	a.Orchestrator = status.NewOrchestrator(a.Resolver, a.Controller, a.Gate, a.StatusService, a.Logger)
	a.Reports = report.NewBuilder(a.Logger, 0)

	return nil
}

// Check runs one status pass for filterDate over the registered jobs named in
// names (case-insensitive), or over every job when names is empty
func (a *App) Check(ctx context.Context, filterDate time.Time, names []string, onResult status.ResultFunc) ([]*models.AnalysisResult, error) {
	jobList, err := a.JobService.List(ctx)
	if err != nil {
		return nil, err
	}
	jobList = selectJobs(jobList, names)

	pass := a.Orchestrator.Run(ctx, jobList, filterDate, onResult)
	<-pass.Done()
	return pass.Results(), nil
}

// NewRefresh creates the watch-mode refresh service around pass. The filter
// date is re-evaluated on every pass through dateFn.
func (a *App) NewRefresh(dateFn func() time.Time, pass func(results []*models.AnalysisResult, filterDate time.Time)) interfaces.RefreshService {
	a.Refresh = refresh.NewService(func(ctx context.Context) error {
		filterDate := dateFn()
		results, err := a.Check(ctx, filterDate, nil, nil)
		if err != nil {
			return err
		}
		pass(results, filterDate)
		return nil
	}, a.Logger)
	return a.Refresh
}

// selectJobs keeps the jobs whose name matches one of names, in registry order
func selectJobs(jobList []*models.Job, names []string) []*models.Job {
	if len(names) == 0 {
		return jobList
	}
	var selected []*models.Job
	for _, job := range jobList {
		for _, name := range names {
			if strings.EqualFold(job.Name, name) {
				selected = append(selected, job)
				break
			}
		}
	}
	return selected
}

// Close stops background services and closes storage
func (a *App) Close() error {
	if a.Refresh != nil {
		if err := a.Refresh.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop refresh service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}
	return nil
}
