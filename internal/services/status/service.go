package status

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// AppState is what the monitor is doing right now
type AppState string

const (
	StateIdle     AppState = "idle"
	StateChecking AppState = "checking"
)

// Snapshot is a copy of the monitor state at one moment
type Snapshot struct {
	State      AppState
	PassID     string
	FilterDate time.Time
	Total      int
	Completed  int
	LastPass   *time.Time
	Timestamp  time.Time
}

// Service tracks the state of status passes for watch mode and the CLI
type Service struct {
	mu       sync.RWMutex
	state    AppState
	passID   string
	date     time.Time
	total    int
	done     int
	lastPass *time.Time
	logger   arbor.ILogger
}

// NewService creates an idle state tracker
func NewService(logger arbor.ILogger) *Service {
	return &Service{state: StateIdle, logger: logger}
}

// GetState returns the current state (thread-safe)
func (s *Service) GetState() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) passStarted(id string, filterDate time.Time, total int) {
	s.mu.Lock()
	old := s.state
	s.state = StateChecking
	s.passID = id
	s.date = filterDate
	s.total = total
	s.done = 0
	s.mu.Unlock()

	s.logger.Debug().
		Str("old_state", string(old)).
		Str("new_state", string(StateChecking)).
		Str("pass_id", id).
		Int("jobs", total).
		Msg("Monitor state changed")
}

func (s *Service) jobCompleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.passID == id {
		s.done++
	}
}

func (s *Service) passFinished(id string) {
	s.mu.Lock()
	if s.passID != id {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	s.state = StateIdle
	s.lastPass = &now
	s.mu.Unlock()

	s.logger.Debug().
		Str("old_state", string(StateChecking)).
		Str("new_state", string(StateIdle)).
		Str("pass_id", id).
		Msg("Monitor state changed")
}

// GetStatus returns a copy of the current state
func (s *Service) GetStatus() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:      s.state,
		PassID:     s.passID,
		FilterDate: s.date,
		Total:      s.total,
		Completed:  s.done,
		Timestamp:  time.Now(),
	}
	if s.lastPass != nil {
		last := *s.lastPass
		snap.LastPass = &last
	}
	return snap
}
