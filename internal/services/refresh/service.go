package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/interfaces"
)

var _ interfaces.RefreshService = (*Service)(nil)

// DefaultSchedule re-checks every 30 seconds
const DefaultSchedule = "*/30 * * * * *"

// PassFunc runs one refresh pass and blocks until it finishes
type PassFunc func(ctx context.Context) error

// Service re-runs a pass on a cron schedule. A tick that fires while the
// previous pass is still running is skipped.
type Service struct {
	pass   PassFunc
	cron   *cron.Cron
	logger arbor.ILogger

	mu           sync.Mutex // protects isProcessing, lastRun, lastError
	isProcessing bool
	lastRun      *time.Time
	lastError    string
	skipped      int

	runMu   sync.Mutex // protects running, entryID, ctx
	running bool
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewService creates a refresh service. Schedules use six fields, seconds first.
func NewService(pass PassFunc, logger arbor.ILogger) *Service {
	return &Service{
		pass:   pass,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// Start begins running passes on cronExpr
func (s *Service) Start(cronExpr string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return fmt.Errorf("refresh already running")
	}
	if cronExpr == "" {
		cronExpr = DefaultSchedule
	}

	id, err := s.cron.AddFunc(cronExpr, s.runScheduledPass)
	if err != nil {
		return fmt.Errorf("failed to add refresh schedule: %w", err)
	}
	s.entryID = id
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("cron_expr", cronExpr).Msg("Refresh started")
	return nil
}

// Stop halts the schedule, cancels a pass in progress and waits for it
func (s *Service) Stop() error {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return nil
	}
	s.cancel()
	s.cron.Remove(s.entryID)
	s.running = false
	s.runMu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Refresh stopped")
	return nil
}

// TriggerNow runs a pass immediately on the caller's goroutine
func (s *Service) TriggerNow() error {
	s.logger.Info().Msg("Manual refresh requested")
	return s.runPass(s.passContext())
}

// IsRunning reports whether the schedule is active
func (s *Service) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// LastRun is when the most recent pass finished
func (s *Service) LastRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	t := *s.lastRun
	return &t
}

// LastError is the error from the most recent pass, or ""
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Skipped counts ticks dropped because a pass was still running
func (s *Service) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// NextRun is when the schedule fires next, nil when stopped
func (s *Service) NextRun() *time.Time {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

func (s *Service) passContext() context.Context {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

func (s *Service) runScheduledPass() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic in refresh pass")
		}
	}()

	if err := s.runPass(s.passContext()); err != nil && !errors.Is(err, ErrPassInProgress) {
		s.logger.Warn().Err(err).Msg("Refresh pass failed")
	}
}

// ErrPassInProgress is returned when a pass is requested while one runs
var ErrPassInProgress = errors.New("refresh pass already in progress")

func (s *Service) runPass(ctx context.Context) error {
	s.mu.Lock()
	if s.isProcessing {
		s.skipped++
		s.mu.Unlock()
		s.logger.Debug().Msg("Previous refresh pass still running, skipping this cycle")
		return ErrPassInProgress
	}
	s.isProcessing = true
	s.mu.Unlock()

	started := time.Now()
	var err error
	defer func() {
		s.mu.Lock()
		finished := time.Now()
		s.isProcessing = false
		s.lastRun = &finished
		s.lastError = ""
		if err != nil {
			s.lastError = err.Error()
		}
		s.mu.Unlock()
		s.logger.Debug().Str("elapsed", finished.Sub(started).String()).Msg("Refresh pass finished")
	}()

	err = s.pass(ctx)
	return err
}
